package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/names"
)

// Build normalizes a raw dataset into a Tree. Records that break the tree
// invariants (missing parent, repeated sibling name, blank name) are skipped
// and reported; they never fail the build. Provinces referenced by lower
// levels are created implicitly since no collection lists them.
func Build(raw *RawDataset, canon *names.Canon) (*Tree, []models.Diagnostic) {
	t := newTree(canon)
	var diags []models.Diagnostic
	if raw == nil {
		return t, nil
	}

	regions := make([]RegionRecord, 0, len(raw.Regions))
	for _, r := range raw.Regions {
		if depth(r.Level) < 0 || r.Level == models.LevelDusun {
			diags = append(diags, models.Diagnostic{
				Code:    models.DiagOrphanNode,
				Level:   r.Level,
				Subject: r.Name(),
				Message: "unsupported level for region record",
			})
			continue
		}
		regions = append(regions, r)
	}
	sort.SliceStable(regions, func(i, j int) bool {
		return depth(regions[i].Level) < depth(regions[j].Level)
	})

	for _, r := range regions {
		if d := t.addRegion(r); d != nil {
			diags = append(diags, *d)
		}
	}

	for _, rec := range raw.Dusun {
		diags = append(diags, t.addDusun(rec)...)
	}
	t.dusun = CountDusun(raw.Dusun)

	orgs := make([]OrgRecord, len(raw.Orgs))
	copy(orgs, raw.Orgs)
	sort.SliceStable(orgs, func(i, j int) bool {
		return orgs[i].Level == models.LevelUP3 && orgs[j].Level != models.LevelUP3
	})
	for _, o := range orgs {
		if d := t.addOrg(o); d != nil {
			diags = append(diags, *d)
		}
	}

	return t, diags
}

func (t *Tree) addRegion(r RegionRecord) *models.Diagnostic {
	lineage := r.lineage()
	keys := make([]string, len(lineage))
	for i, name := range lineage {
		keys[i] = t.canon.Key(models.AdminLevels[i], name)
		if keys[i] == "" {
			return &models.Diagnostic{
				Code:    models.DiagOrphanNode,
				Level:   r.Level,
				Subject: r.Name(),
				Message: fmt.Sprintf("missing %s name", models.AdminLevels[i]),
			}
		}
	}

	d := len(keys) - 1
	parentID := ""
	if d > 0 {
		parentID = nodeID(models.AdminLevels[d-1], keys[:d])
		if _, ok := t.nodes[parentID]; !ok {
			if d == 1 {
				t.insert(&models.RegionNode{
					ID:     parentID,
					Level:  models.LevelProvince,
					Name:   strings.TrimSpace(r.Province),
					Key:    keys[0],
					Status: models.StatusUnknown,
				})
			} else {
				return &models.Diagnostic{
					Code:    models.DiagOrphanNode,
					Level:   r.Level,
					Subject: r.Name(),
					Message: fmt.Sprintf("parent %s %q not found", models.AdminLevels[d-1], lineage[d-1]),
				}
			}
		}
	}

	id := nodeID(r.Level, keys)
	if _, dup := t.nodes[id]; dup {
		return &models.Diagnostic{
			Code:    models.DiagDuplicateSibling,
			Level:   r.Level,
			Subject: r.Name(),
			Message: "name already used by a sibling",
		}
	}
	t.insert(&models.RegionNode{
		ID:            id,
		Level:         r.Level,
		Name:          strings.TrimSpace(r.Name()),
		Key:           keys[d],
		ParentID:      parentID,
		Population:    r.Population,
		CustomerCount: r.CustomerCount,
		Status:        models.ParseStatus(r.Status),
	})
	return nil
}

func (t *Tree) addDusun(rec models.DusunRecord) []models.Diagnostic {
	lineage := []string{rec.Province, rec.Kabupaten, rec.Kecamatan, rec.Desa}
	keys := make([]string, 0, 5)
	for i, name := range lineage {
		keys = append(keys, t.canon.Key(models.AdminLevels[i], name))
	}
	desaID := nodeID(models.LevelDesa, keys)
	if _, ok := t.nodes[desaID]; !ok {
		return []models.Diagnostic{{
			Code:    models.DiagOrphanNode,
			Level:   models.LevelDusun,
			Subject: rec.Desa,
			Message: "desa for dusun slots not found",
		}}
	}

	var diags []models.Diagnostic
	for _, slot := range rec.Slots {
		if models.IsDusunSentinel(slot) {
			continue
		}
		name := strings.TrimSpace(fmt.Sprint(slot))
		key := t.canon.Key(models.LevelDusun, name)
		id := nodeID(models.LevelDusun, append(keys[:4:4], key))
		if _, dup := t.nodes[id]; dup {
			diags = append(diags, models.Diagnostic{
				Code:    models.DiagDuplicateSibling,
				Level:   models.LevelDusun,
				Subject: name,
				Message: fmt.Sprintf("dusun repeated in desa %q", rec.Desa),
			})
			continue
		}
		t.insert(&models.RegionNode{
			ID:       id,
			Level:    models.LevelDusun,
			Name:     name,
			Key:      key,
			ParentID: desaID,
			Status:   models.StatusUnknown,
		})
	}
	return diags
}

func (t *Tree) insert(n *models.RegionNode) {
	t.nodes[n.ID] = n
	t.children[n.ParentID] = append(t.children[n.ParentID], n)
	if t.byKey[n.Level] == nil {
		t.byKey[n.Level] = make(map[string][]*models.RegionNode)
	}
	t.byKey[n.Level][n.Key] = append(t.byKey[n.Level][n.Key], n)
	t.levels[n.Level] = append(t.levels[n.Level], n)
}

func (t *Tree) addOrg(o OrgRecord) *models.Diagnostic {
	key := t.canon.Key(o.Level, o.Name)
	if key == "" || !o.Level.IsOrg() {
		return &models.Diagnostic{
			Code:    models.DiagOrphanNode,
			Level:   o.Level,
			Subject: o.Name,
			Message: "org unit without name or level",
		}
	}

	unit := &models.OrgUnit{
		Level:         o.Level,
		Name:          strings.TrimSpace(o.Name),
		Key:           key,
		CustomerCount: o.CustomerCount,
		Status:        models.ParseStatus(o.Status),
	}
	if o.Level == models.LevelUP3 {
		unit.ID = nodeID(models.LevelUP3, []string{key})
	} else {
		up3Key := t.canon.Key(models.LevelUP3, o.UP3)
		parentID := nodeID(models.LevelUP3, []string{up3Key})
		if _, ok := t.orgs[parentID]; !ok || up3Key == "" {
			return &models.Diagnostic{
				Code:    models.DiagOrphanNode,
				Level:   o.Level,
				Subject: o.Name,
				Message: fmt.Sprintf("UP3 %q not found", o.UP3),
			}
		}
		unit.ID = nodeID(models.LevelULP, []string{up3Key, key})
		unit.ParentID = parentID
	}

	if _, dup := t.orgs[unit.ID]; dup {
		return &models.Diagnostic{
			Code:    models.DiagDuplicateSibling,
			Level:   o.Level,
			Subject: o.Name,
			Message: "org unit listed twice",
		}
	}
	t.orgs[unit.ID] = unit
	if unit.ParentID != "" {
		t.orgChildren[unit.ParentID] = append(t.orgChildren[unit.ParentID], unit)
	}
	if t.orgByKey[unit.Level] == nil {
		t.orgByKey[unit.Level] = make(map[string][]*models.OrgUnit)
	}
	t.orgByKey[unit.Level][key] = append(t.orgByKey[unit.Level][key], unit)
	t.orgLevels[unit.Level] = append(t.orgLevels[unit.Level], unit)
	return nil
}
