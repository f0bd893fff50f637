package composer

import (
	"context"

	"sipeta-bknd/internal/mapdata"
	"sipeta-bknd/internal/models"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// StatusColors are the fill colors the renderer uses per status.
var StatusColors = map[models.Status]string{
	models.StatusStable:  "#16a34a",
	models.StatusWarning: "#f59e0b",
	models.StatusUnknown: "#9ca3af",
}

// RenderFeature is one region or unit ready to draw.
type RenderFeature struct {
	Key      string        `json:"key"`
	ID       string        `json:"id"`
	Level    models.Level  `json:"level"`
	Label    string        `json:"label"`
	Status   models.Status `json:"status"`
	Color    string        `json:"color"`
	Counts   models.Counts `json:"counts"`
	Geometry orb.Geometry  `json:"-"`
	Marker   *orb.Point    `json:"marker,omitempty"`
}

type Result struct {
	Level       models.Level        `json:"level"`
	Features    []RenderFeature     `json:"features"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// cancellation is checked every this many features
const checkEvery = 256

// Compose selects what the renderer should draw for fs. It reads ds without
// mutating it, so any number of compositions may run against one dataset.
// The only error is ctx's, when the caller gave up on the result.
func Compose(ctx context.Context, ds *mapdata.Dataset, fs FilterState) (Result, error) {
	level := fs.Level()
	res := Result{Level: level, Features: []RenderFeature{}}

	if !ds.HasJoined(level) {
		res.Diagnostics = append(res.Diagnostics, (&UnknownMarkerLevel{Level: level, Loaded: ds.HasLevel(level)}).Diagnostic())
		return res, nil
	}

	locs := newLocationSet(fs.Locations, ds.Tree.Canon())
	if level.IsOrg() {
		return composeOrg(ctx, ds, fs, level, locs, res)
	}

	for i, j := range ds.Regions[level] {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		node := j.Node
		if !fs.Admits(node.Status) || !regionInLocations(ds, node, locs) {
			continue
		}
		res.Features = append(res.Features, RenderFeature{
			Key:      node.Key,
			ID:       node.ID,
			Level:    level,
			Label:    node.Name,
			Status:   node.Status,
			Color:    StatusColors[node.Status],
			Counts:   ds.Tree.Aggregate(node),
			Geometry: j.Feature.Geometry,
			Marker:   marker(fs, j.Feature.Geometry),
		})
	}
	return res, nil
}

func composeOrg(ctx context.Context, ds *mapdata.Dataset, fs FilterState, level models.Level, locs locationSet, res Result) (Result, error) {
	for i, j := range ds.Orgs[level] {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		unit := j.Unit
		if !fs.Admits(unit.Status) || !orgInLocations(ds, unit, locs) {
			continue
		}
		res.Features = append(res.Features, RenderFeature{
			Key:      unit.Key,
			ID:       unit.ID,
			Level:    level,
			Label:    unit.Name,
			Status:   unit.Status,
			Color:    StatusColors[unit.Status],
			Counts:   models.Counts{CustomerCount: ds.Tree.AggregateOrg(unit)},
			Geometry: j.Feature.Geometry,
			Marker:   marker(fs, j.Feature.Geometry),
		})
	}
	return res, nil
}

func regionInLocations(ds *mapdata.Dataset, node *models.RegionNode, locs locationSet) bool {
	if locs == nil || locs.has(node.Key) {
		return true
	}
	for _, a := range ds.Tree.Ancestors(node) {
		if locs.has(a.Key) {
			return true
		}
	}
	return false
}

func orgInLocations(ds *mapdata.Dataset, unit *models.OrgUnit, locs locationSet) bool {
	if locs == nil || locs.has(unit.Key) {
		return true
	}
	up3 := ds.Tree.OrgByID(unit.ParentID)
	return up3 != nil && locs.has(up3.Key)
}

func marker(fs FilterState, g orb.Geometry) *orb.Point {
	if !fs.ShowMarkers || g == nil {
		return nil
	}
	p, _ := planar.CentroidArea(g)
	return &p
}
