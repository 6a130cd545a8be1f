package spatial

import (
	"github.com/paulmach/orb/geojson"
)

// Property names added to exported road features.
const (
	PropRoadID     = "road_id"
	PropRoadLength = "road_length"
	PropDetID      = "detid"
	PropGridID     = "grid_id"
)

// FeatureCollection exports the roads with their input properties plus
// road_id, road_length, detid and, once attached, grid_id. A road without a
// detector has a null detid.
func (n *Network) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range n.Roads {
		f := geojson.NewFeature(r.Geometry)
		f.Properties = r.Properties.Clone()
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties[PropRoadID] = r.ID
		f.Properties[PropRoadLength] = r.Length
		if r.DetID != "" {
			f.Properties[PropDetID] = r.DetID
		} else {
			f.Properties[PropDetID] = nil
		}
		if r.GridID != "" {
			f.Properties[PropGridID] = r.GridID
		}
		fc.Append(f)
	}
	return fc
}

// Restore reapplies detid and grid_id from a network written by
// FeatureCollection, so later stages can pick up where earlier ones stopped.
func (n *Network) Restore() {
	for i := range n.Roads {
		props := n.Roads[i].Properties
		if v, ok := props[PropDetID].(string); ok {
			n.Roads[i].DetID = v
		}
		if v, ok := props[PropGridID].(string); ok {
			n.Roads[i].GridID = v
		}
		delete(props, PropRoadID)
		delete(props, PropRoadLength)
		delete(props, PropDetID)
		delete(props, PropGridID)
	}
}
