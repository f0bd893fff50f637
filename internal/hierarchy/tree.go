package hierarchy

import (
	"strings"
	"sync"

	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/names"
)

// Tree is an immutable snapshot of the administrative hierarchy and the
// UP3/ULP overlay. Aggregates are memoized per Tree, so a reload starts
// from an empty memo.
type Tree struct {
	canon *names.Canon

	nodes    map[string]*models.RegionNode
	children map[string][]*models.RegionNode
	byKey    map[models.Level]map[string][]*models.RegionNode
	levels   map[models.Level][]*models.RegionNode

	orgs        map[string]*models.OrgUnit
	orgChildren map[string][]*models.OrgUnit
	orgByKey    map[models.Level]map[string][]*models.OrgUnit
	orgLevels   map[models.Level][]*models.OrgUnit

	dusun DusunSummary

	mu      sync.Mutex
	memo    map[string]models.Counts
	orgMemo map[string]*int64
}

func newTree(canon *names.Canon) *Tree {
	return &Tree{
		canon:       canon,
		nodes:       make(map[string]*models.RegionNode),
		children:    make(map[string][]*models.RegionNode),
		byKey:       make(map[models.Level]map[string][]*models.RegionNode),
		levels:      make(map[models.Level][]*models.RegionNode),
		orgs:        make(map[string]*models.OrgUnit),
		orgChildren: make(map[string][]*models.OrgUnit),
		orgByKey:    make(map[models.Level]map[string][]*models.OrgUnit),
		orgLevels:   make(map[models.Level][]*models.OrgUnit),
		memo:        make(map[string]models.Counts),
		orgMemo:     make(map[string]*int64),
	}
}

// Canon returns the name canonicalizer the tree was built with.
func (t *Tree) Canon() *names.Canon { return t.canon }

// Key canonicalizes name at level with the tree's alias table.
func (t *Tree) Key(level models.Level, name string) string {
	return t.canon.Key(level, name)
}

// Node returns the node with the given ID.
func (t *Tree) Node(id string) *models.RegionNode {
	return t.nodes[id]
}

// GetNode looks a node up by level and name, ignoring case, repeated
// whitespace and diacritics. When several nodes share the name the first
// in source order wins; use Matches to see all of them.
func (t *Tree) GetNode(level models.Level, name string) *models.RegionNode {
	m := t.Matches(level, name)
	if len(m) == 0 {
		return nil
	}
	return m[0]
}

// Matches returns every node at level whose key equals name's key.
func (t *Tree) Matches(level models.Level, name string) []*models.RegionNode {
	return t.byKey[level][t.canon.Key(level, name)]
}

// MatchesKey returns every node at level with an already canonical key.
func (t *Tree) MatchesKey(level models.Level, key string) []*models.RegionNode {
	return t.byKey[level][key]
}

// OrgUnitsByKey returns every unit at level with an already canonical key.
func (t *Tree) OrgUnitsByKey(level models.Level, key string) []*models.OrgUnit {
	return t.orgByKey[level][key]
}

// ChildOf returns the child of parent carrying name, or nil.
func (t *Tree) ChildOf(parent *models.RegionNode, name string) *models.RegionNode {
	kids := t.ChildrenOf(parent)
	if len(kids) == 0 {
		return nil
	}
	key := t.canon.Key(kids[0].Level, name)
	for _, k := range kids {
		if k.Key == key {
			return k
		}
	}
	return nil
}

// ChildrenOf returns the children of node in source insertion order. A nil
// node yields the provinces.
func (t *Tree) ChildrenOf(node *models.RegionNode) []*models.RegionNode {
	if node == nil {
		return t.children[""]
	}
	return t.children[node.ID]
}

// Parent returns the enclosing node, or nil for a province.
func (t *Tree) Parent(node *models.RegionNode) *models.RegionNode {
	if node == nil || node.ParentID == "" {
		return nil
	}
	return t.nodes[node.ParentID]
}

// Ancestors returns the chain from the direct parent up to the province.
func (t *Tree) Ancestors(node *models.RegionNode) []*models.RegionNode {
	var out []*models.RegionNode
	for p := t.Parent(node); p != nil; p = t.Parent(p) {
		out = append(out, p)
	}
	return out
}

// Nodes returns all nodes at level in source order.
func (t *Tree) Nodes(level models.Level) []*models.RegionNode {
	return t.levels[level]
}

// Len returns the number of region nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Aggregate sums population and customer counts over node's subtree. A leaf
// contributes its own values; an inner node contributes the sum of its
// children and falls back to its own values only when no descendant has
// data. Unknown stays nil.
func (t *Tree) Aggregate(node *models.RegionNode) models.Counts {
	if node == nil {
		return models.Counts{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.aggregateLocked(node)
	return models.Counts{Population: copyCount(c.Population), CustomerCount: copyCount(c.CustomerCount)}
}

func (t *Tree) aggregateLocked(node *models.RegionNode) models.Counts {
	if c, ok := t.memo[node.ID]; ok {
		return c
	}
	var c models.Counts
	for _, kid := range t.children[node.ID] {
		kc := t.aggregateLocked(kid)
		c.Population = addCount(c.Population, kc.Population)
		c.CustomerCount = addCount(c.CustomerCount, kc.CustomerCount)
	}
	if c.Population == nil {
		c.Population = copyCount(node.Population)
	}
	if c.CustomerCount == nil {
		c.CustomerCount = copyCount(node.CustomerCount)
	}
	t.memo[node.ID] = c
	return c
}

// OrgUnit looks a UP3 or ULP up by name.
func (t *Tree) OrgUnit(level models.Level, name string) *models.OrgUnit {
	m := t.orgByKey[level][t.canon.Key(level, name)]
	if len(m) == 0 {
		return nil
	}
	return m[0]
}

// OrgByID returns the unit with the given ID.
func (t *Tree) OrgByID(id string) *models.OrgUnit {
	return t.orgs[id]
}

// OrgUnits returns all units at level in source order.
func (t *Tree) OrgUnits(level models.Level) []*models.OrgUnit {
	return t.orgLevels[level]
}

// ULPsOf returns the ULPs under a UP3 in source order.
func (t *Tree) ULPsOf(up3 *models.OrgUnit) []*models.OrgUnit {
	if up3 == nil {
		return nil
	}
	return t.orgChildren[up3.ID]
}

// AggregateOrg returns a UP3's recorded customer count, or the sum of its
// ULPs' known counts when the UP3 has none. ULPs return their own count.
func (t *Tree) AggregateOrg(unit *models.OrgUnit) *int64 {
	if unit == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.orgMemo[unit.ID]; ok {
		return copyCount(c)
	}
	c := copyCount(unit.CustomerCount)
	if c == nil {
		for _, ulp := range t.orgChildren[unit.ID] {
			c = addCount(c, ulp.CustomerCount)
		}
	}
	t.orgMemo[unit.ID] = c
	return copyCount(c)
}

// Dusun returns the dusun slot statistics of the load.
func (t *Tree) Dusun() DusunSummary { return t.dusun }

func nodeID(level models.Level, keys []string) string {
	return string(level) + ":" + strings.Join(keys, "/")
}

func addCount(acc, v *int64) *int64 {
	if v == nil {
		return acc
	}
	sum := *v
	if acc != nil {
		sum += *acc
	}
	return &sum
}

func copyCount(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
