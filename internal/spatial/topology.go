package spatial

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
)

// Property names that carry explicit node ids on road features.
const (
	PropFromNode = "from_node"
	PropToNode   = "to_node"
)

// Node is a road end point. Roads meeting at the same Key share the node.
type Node struct {
	ID    int
	Key   string
	Point orb.Point // WGS84, first end point seen for Key
}

// Edge is one road running between two nodes.
type Edge struct {
	RoadID int
	From   int
	To     int
}

// Topology is the road graph of a network plus the roads carrying detectors.
type Topology struct {
	Nodes []Node
	Edges []Edge // one per road, in road order

	// Sensors lists the ids of roads with a detector in road order; the
	// position of a road in it is its sensor index.
	Sensors []int
}

// SensorIndex maps road ids with a detector to their sensor index.
func (t Topology) SensorIndex() map[int]int {
	m := make(map[int]int, len(t.Sensors))
	for i, id := range t.Sensors {
		m[id] = i
	}
	return m
}

// SensorColumns returns the detector ids of the sensor roads, in sensor index
// order.
func (n *Network) SensorColumns(t Topology) []string {
	cols := make([]string, len(t.Sensors))
	for i, id := range t.Sensors {
		cols[i] = n.Roads[id].DetID
	}
	return cols
}

// Topology builds the road graph. When every road carries from_node and
// to_node properties those name the nodes; otherwise nodes are end points
// matched to 1e-7 degrees. Node ids follow the sorted node keys.
func (n *Network) Topology() Topology {
	explicit := true
	for _, r := range n.Roads {
		if r.Properties[PropFromNode] == nil || r.Properties[PropToNode] == nil {
			explicit = false
			break
		}
	}

	type ends struct{ from, to string }
	keys := make([]ends, len(n.Roads))
	points := make(map[string]orb.Point)
	for i, r := range n.Roads {
		first, last := r.Geometry[0], r.Geometry[len(r.Geometry)-1]
		if explicit {
			keys[i] = ends{fmt.Sprint(r.Properties[PropFromNode]), fmt.Sprint(r.Properties[PropToNode])}
		} else {
			keys[i] = ends{pointKey(first), pointKey(last)}
		}
		if _, ok := points[keys[i].from]; !ok {
			points[keys[i].from] = first
		}
		if _, ok := points[keys[i].to]; !ok {
			points[keys[i].to] = last
		}
	}

	sorted := make([]string, 0, len(points))
	for k := range points {
		sorted = append(sorted, k)
	}
	slices.Sort(sorted)

	t := Topology{Nodes: make([]Node, len(sorted)), Edges: make([]Edge, len(n.Roads))}
	ids := make(map[string]int, len(sorted))
	for i, k := range sorted {
		ids[k] = i
		t.Nodes[i] = Node{ID: i, Key: k, Point: points[k]}
	}
	for i, r := range n.Roads {
		t.Edges[i] = Edge{RoadID: r.ID, From: ids[keys[i].from], To: ids[keys[i].to]}
		if r.DetID != "" {
			t.Sensors = append(t.Sensors, r.ID)
		}
	}
	return t
}

func pointKey(p orb.Point) string { return fmt.Sprintf("%.7f,%.7f", p[0], p[1]) }
