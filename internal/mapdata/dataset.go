package mapdata

import (
	"time"

	"sipeta-bknd/internal/geofeed"
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/models"

	"github.com/google/uuid"
)

// Dataset is one immutable load cycle: the hierarchy plus every joined
// boundary level. Compositions read it without locking; a refresh builds a
// new Dataset and swaps the pointer.
type Dataset struct {
	Version     string
	LoadedAt    time.Time
	Tree        *hierarchy.Tree
	Regions     map[models.Level][]geofeed.JoinedRegion
	Orgs        map[models.Level][]geofeed.JoinedOrg
	Unmatched   map[models.Level][]models.GeoFeature
	Skipped     map[models.Level]int
	Diagnostics []models.Diagnostic
}

// HasLevel reports whether boundaries were loaded for level.
func (d *Dataset) HasLevel(level models.Level) bool {
	if d == nil {
		return false
	}
	if level.IsOrg() {
		_, ok := d.Orgs[level]
		return ok
	}
	_, ok := d.Regions[level]
	return ok
}

// HasJoined reports whether at least one boundary at level joined the
// hierarchy.
func (d *Dataset) HasJoined(level models.Level) bool {
	if d == nil {
		return false
	}
	if level.IsOrg() {
		return len(d.Orgs[level]) > 0
	}
	return len(d.Regions[level]) > 0
}

// Levels lists the loaded boundary levels, administrative first.
func (d *Dataset) Levels() []models.Level {
	var out []models.Level
	for _, l := range append(append([]models.Level{}, models.AdminLevels...), models.LevelUP3, models.LevelULP) {
		if d.HasLevel(l) {
			out = append(out, l)
		}
	}
	return out
}

// Assemble joins loaded levels against tree. Results with a nil entry are
// ignored.
func Assemble(tree *hierarchy.Tree, treeDiags []models.Diagnostic, levels []*geofeed.LevelResult) *Dataset {
	ds := &Dataset{
		Version:   uuid.NewString(),
		LoadedAt:  time.Now().UTC(),
		Tree:      tree,
		Regions:   make(map[models.Level][]geofeed.JoinedRegion),
		Orgs:      make(map[models.Level][]geofeed.JoinedOrg),
		Unmatched: make(map[models.Level][]models.GeoFeature),
		Skipped:   make(map[models.Level]int),
	}
	ds.Diagnostics = append(ds.Diagnostics, treeDiags...)

	for _, lr := range levels {
		if lr == nil {
			continue
		}
		ds.Diagnostics = append(ds.Diagnostics, lr.Diagnostics...)
		ds.Skipped[lr.Level] = lr.Skipped

		if lr.Level.IsOrg() {
			res := geofeed.JoinToOrgUnits(lr.Features, tree)
			ds.Orgs[lr.Level] = append(make([]geofeed.JoinedOrg, 0, len(res.Joined)), res.Joined...)
			ds.Unmatched[lr.Level] = res.Unmatched
			ds.Diagnostics = append(ds.Diagnostics, res.Diagnostics...)
			continue
		}
		res := geofeed.JoinToHierarchy(lr.Features, tree)
		ds.Regions[lr.Level] = append(make([]geofeed.JoinedRegion, 0, len(res.Joined)), res.Joined...)
		ds.Unmatched[lr.Level] = res.Unmatched
		ds.Diagnostics = append(ds.Diagnostics, res.Diagnostics...)
	}
	return ds
}
