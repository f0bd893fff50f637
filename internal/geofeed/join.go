package geofeed

import (
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/models"
)

// JoinedRegion pairs a boundary with its administrative node.
type JoinedRegion struct {
	Feature models.GeoFeature
	Node    *models.RegionNode
}

// JoinedOrg pairs a boundary with its UP3/ULP unit.
type JoinedOrg struct {
	Feature models.GeoFeature
	Unit    *models.OrgUnit
}

type JoinResult struct {
	Joined      []JoinedRegion
	Unmatched   []models.GeoFeature
	Diagnostics []models.Diagnostic
}

type OrgJoinResult struct {
	Joined      []JoinedOrg
	Unmatched   []models.GeoFeature
	Diagnostics []models.Diagnostic
}

// JoinToHierarchy matches features to nodes by exact canonical key at the
// same level. A feature's parent key breaks ties between same-named nodes.
// Anything left unmatched or ambiguous is surfaced, never guessed.
func JoinToHierarchy(features []models.GeoFeature, tree *hierarchy.Tree) JoinResult {
	var res JoinResult
	seen := make(map[string]bool)

	for _, f := range features {
		cands := tree.MatchesKey(f.Level, f.RegionKey)
		if len(cands) > 1 && f.ParentKey != "" {
			var narrowed []*models.RegionNode
			for _, c := range cands {
				if p := tree.Parent(c); p != nil && p.Key == f.ParentKey {
					narrowed = append(narrowed, c)
				}
			}
			cands = narrowed
		}

		var warn *UnresolvedJoinWarning
		switch {
		case len(cands) == 0:
			warn = &UnresolvedJoinWarning{Level: f.Level, Name: f.Name, Key: f.RegionKey, Reason: "no region with this name"}
		case len(cands) > 1:
			warn = &UnresolvedJoinWarning{Level: f.Level, Name: f.Name, Key: f.RegionKey, Candidates: len(cands), Reason: "name shared by several regions"}
		case seen[cands[0].ID]:
			warn = &UnresolvedJoinWarning{Level: f.Level, Name: f.Name, Key: f.RegionKey, Candidates: 1, Reason: "region already has a boundary"}
		}
		if warn != nil {
			res.Unmatched = append(res.Unmatched, f)
			res.Diagnostics = append(res.Diagnostics, warn.Diagnostic())
			continue
		}

		seen[cands[0].ID] = true
		res.Joined = append(res.Joined, JoinedRegion{Feature: f, Node: cands[0]})
	}
	return res
}

// JoinToOrgUnits matches UP3 or ULP boundaries to org units.
func JoinToOrgUnits(features []models.GeoFeature, tree *hierarchy.Tree) OrgJoinResult {
	var res OrgJoinResult
	seen := make(map[string]bool)

	for _, f := range features {
		cands := tree.OrgUnitsByKey(f.Level, f.RegionKey)
		if len(cands) > 1 && f.ParentKey != "" {
			var narrowed []*models.OrgUnit
			for _, c := range cands {
				if c.ParentID != "" && c.ParentID == string(models.LevelUP3)+":"+f.ParentKey {
					narrowed = append(narrowed, c)
				}
			}
			cands = narrowed
		}

		var warn *UnresolvedJoinWarning
		switch {
		case len(cands) == 0:
			warn = &UnresolvedJoinWarning{Level: f.Level, Name: f.Name, Key: f.RegionKey, Reason: "no unit with this name"}
		case len(cands) > 1:
			warn = &UnresolvedJoinWarning{Level: f.Level, Name: f.Name, Key: f.RegionKey, Candidates: len(cands), Reason: "name shared by several units"}
		case seen[cands[0].ID]:
			warn = &UnresolvedJoinWarning{Level: f.Level, Name: f.Name, Key: f.RegionKey, Candidates: 1, Reason: "unit already has a boundary"}
		}
		if warn != nil {
			res.Unmatched = append(res.Unmatched, f)
			res.Diagnostics = append(res.Diagnostics, warn.Diagnostic())
			continue
		}

		seen[cands[0].ID] = true
		res.Joined = append(res.Joined, JoinedOrg{Feature: f, Unit: cands[0]})
	}
	return res
}
