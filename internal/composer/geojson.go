package composer

import (
	"github.com/paulmach/orb/geojson"
)

// ToFeatureCollection renders a result as GeoJSON: one polygon feature per
// region followed by a point feature per marker.
func ToFeatureCollection(res Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	var markers []*geojson.Feature

	for _, rf := range res.Features {
		f := geojson.NewFeature(rf.Geometry)
		f.ID = rf.ID
		f.Properties = properties(rf, "region")
		fc.Append(f)

		if rf.Marker != nil {
			m := geojson.NewFeature(*rf.Marker)
			m.ID = rf.ID + "#marker"
			m.Properties = properties(rf, "marker")
			markers = append(markers, m)
		}
	}
	for _, m := range markers {
		fc.Append(m)
	}
	return fc
}

func properties(rf RenderFeature, kind string) geojson.Properties {
	p := geojson.Properties{
		"kind":          kind,
		"key":           rf.Key,
		"level":         string(rf.Level),
		"label":         rf.Label,
		"status":        string(rf.Status),
		"color":         rf.Color,
		"population":    nil,
		"customerCount": nil,
	}
	if rf.Counts.Population != nil {
		p["population"] = *rf.Counts.Population
	}
	if rf.Counts.CustomerCount != nil {
		p["customerCount"] = *rf.Counts.CustomerCount
	}
	return p
}
