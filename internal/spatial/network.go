// Package spatial links detectors and weather grid cells to the road network.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/tidwall/rtree"
)

// ErrEmptyNetwork is returned when a road file holds no line geometry.
var ErrEmptyNetwork = errors.New("road network has no line features")

// Road is one LineString segment of the network. A MultiLineString feature
// becomes several roads sharing the feature's properties.
type Road struct {
	ID         int
	Geometry   orb.LineString // WGS84 lon/lat
	Properties geojson.Properties
	Length     float64 // metres, rounded to centimetres
	DetID      string  // empty when no detector sits on the road
	GridID     string  // empty until AttachGrid runs
}

// Network is a road network indexed for nearest-road queries.
type Network struct {
	Roads []Road

	// mercator holds each road projected to Web Mercator metres so distance
	// comparisons are planar.
	mercator []orb.LineString
	index    rtree.RTree
	bound    orb.Bound
}

// NewNetwork explodes the line features of fc into roads numbered in file
// order. Non-line features are ignored.
func NewNetwork(fc *geojson.FeatureCollection) (*Network, error) {
	n := &Network{}
	for _, f := range fc.Features {
		for _, ls := range explode(f.Geometry) {
			if len(ls) < 2 {
				continue
			}
			n.add(ls, f.Properties)
		}
	}
	if len(n.Roads) == 0 {
		return nil, ErrEmptyNetwork
	}
	return n, nil
}

// ParseNetwork decodes a GeoJSON feature collection and builds its network.
func ParseNetwork(data []byte) (*Network, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode road network: %w", err)
	}
	return NewNetwork(fc)
}

func explode(g orb.Geometry) []orb.LineString {
	switch geom := g.(type) {
	case orb.LineString:
		return []orb.LineString{geom}
	case orb.MultiLineString:
		return []orb.LineString(geom)
	default:
		return nil
	}
}

func (n *Network) add(ls orb.LineString, props geojson.Properties) {
	id := len(n.Roads)
	merc := project.LineString(ls.Clone(), project.WGS84.ToMercator)

	n.Roads = append(n.Roads, Road{
		ID:         id,
		Geometry:   ls,
		Properties: props.Clone(),
		Length:     math.Round(geo.Length(ls)*100) / 100,
	})
	n.mercator = append(n.mercator, merc)

	b := merc.Bound()
	n.index.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, id)
	if id == 0 {
		n.bound = b
	} else {
		n.bound = n.bound.Union(b)
	}
}

// Bound returns the WGS84 bounding box of every road.
func (n *Network) Bound() orb.Bound {
	b := n.Roads[0].Geometry.Bound()
	for _, r := range n.Roads[1:] {
		b = b.Union(r.Geometry.Bound())
	}
	return b
}

// searchStart is the half-width of the first nearest-road search box.
const searchStart = 50.0 // metres

// Nearest returns the road closest to the WGS84 point p and its distance in
// projected metres. Ties go to the lower road id. A point with no finite
// Mercator position returns -1.
func (n *Network) Nearest(p orb.Point) (int, float64) {
	q := project.Point(p, project.WGS84.ToMercator)
	if !finite(q[0]) || !finite(q[1]) {
		return -1, math.Inf(1)
	}

	// A road within distance r of q has a bound intersecting the box of
	// half-width r, so the best candidate is final once its distance is <= r.
	limit := math.Max(n.bound.Right()-n.bound.Left(), n.bound.Top()-n.bound.Bottom())
	limit += planar.Distance(q, n.bound.Center())
	for r := searchStart; ; r *= 2 {
		best, dist := -1, math.Inf(1)
		n.index.Search(
			[2]float64{q[0] - r, q[1] - r},
			[2]float64{q[0] + r, q[1] + r},
			func(_, _ [2]float64, v interface{}) bool {
				id := v.(int)
				d := planar.DistanceFrom(n.mercator[id], q)
				if d < dist || (d == dist && id < best) {
					best, dist = id, d
				}
				return true
			},
		)
		if best >= 0 && (dist <= r || r > limit) {
			return best, dist
		}
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
