package geofeed

import (
	"sort"

	"github.com/paulmach/orb/geojson"
)

// KeyCount is how many features carry a property key.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// PropertyInventory lists the distinct property keys of a collection,
// most frequent first. Used to spot key spellings (Kab_Kota vs KAB_KOTA)
// before adding them to the alias table.
func PropertyInventory(fc *geojson.FeatureCollection) []KeyCount {
	counts := make(map[string]int)
	for _, f := range fc.Features {
		for k := range f.Properties {
			counts[k]++
		}
	}
	out := make([]KeyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, KeyCount{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
