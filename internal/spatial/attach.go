package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
)

// AttachSensors assigns each detector to its nearest road and returns how many
// roads ended up with a detector. When several detectors share a road the
// last one in input order wins. Detectors without a usable position are
// skipped.
func (n *Network) AttachSensors(detectors []domain.Detector) int {
	for i := range n.Roads {
		n.Roads[i].DetID = ""
	}
	for _, d := range detectors {
		id, _ := n.Nearest(orb.Point{d.Lon, d.Lat})
		if id < 0 {
			continue
		}
		n.Roads[id].DetID = d.DetID
	}

	attached := 0
	for _, r := range n.Roads {
		if r.DetID != "" {
			attached++
		}
	}
	return attached
}

// Grid is a set of weather grid cells of equal size, indexed by extent.
type Grid struct {
	cells      []domain.GridCell
	resolution float64
	index      rtree.RTree
}

// NewGrid indexes cells whose centres are resolution degrees apart.
func NewGrid(cells []domain.GridCell, resolution float64) *Grid {
	g := &Grid{cells: cells, resolution: resolution}
	half := resolution / 2
	for i, c := range cells {
		g.index.Insert([2]float64{c.Lon - half, c.Lat - half}, [2]float64{c.Lon + half, c.Lat + half}, i)
	}
	return g
}

// Locate returns the cell containing p, or the cell with the nearest centre
// when p lies outside the grid. Among overlapping cells the first in input
// order wins. ok is false only for an empty grid.
func (g *Grid) Locate(p orb.Point) (domain.GridCell, bool) {
	if len(g.cells) == 0 {
		return domain.GridCell{}, false
	}

	found := -1
	g.index.Search([2]float64{p[0], p[1]}, [2]float64{p[0], p[1]}, func(_, _ [2]float64, v interface{}) bool {
		if i := v.(int); found < 0 || i < found {
			found = i
		}
		return true
	})
	if found >= 0 {
		return g.cells[found], true
	}

	best, dist := 0, math.Inf(1)
	for i, c := range g.cells {
		if d := planar.Distance(p, orb.Point{c.Lon, c.Lat}); d < dist {
			best, dist = i, d
		}
	}
	return g.cells[best], true
}

// AttachGrid tags every road with the grid cell holding its centroid.
func (n *Network) AttachGrid(g *Grid) {
	for i := range n.Roads {
		c, _ := planar.CentroidArea(n.Roads[i].Geometry)
		if cell, ok := g.Locate(c); ok {
			n.Roads[i].GridID = cell.ID
		}
	}
}
