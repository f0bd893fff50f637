package hierarchy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/names"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func n(v int64) *int64 { return &v }

func fixture() *RawDataset {
	return &RawDataset{
		Regions: []RegionRecord{
			// deliberately out of level order: Build must sort by depth
			{Level: models.LevelDesa, Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Baiturrahman", Desa: "Neusu Jaya", Population: n(300), CustomerCount: n(90), Status: "stable"},
			{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "Banda Aceh", Population: n(999999), Status: "warning"},
			{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "Aceh Besar", Population: n(400000), CustomerCount: n(120000), Status: "stable"},
			{Level: models.LevelKecamatan, Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Baiturrahman", Status: "stable"},
			{Level: models.LevelKecamatan, Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Kuta Alam", Population: n(50), Status: "warning"},
			{Level: models.LevelDesa, Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Baiturrahman", Desa: "Ateuk Jawo", Population: n(200), Status: "stable"},
			{Level: models.LevelDesa, Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Baiturrahman", Desa: "Seutui", Status: "stable"},
		},
		Orgs: []OrgRecord{
			{Level: models.LevelULP, Name: "ULP Merduati", UP3: "UP3 Banda Aceh", CustomerCount: n(1000)},
			{Level: models.LevelUP3, Name: "UP3 Banda Aceh", Status: "stable"},
			{Level: models.LevelULP, Name: "ULP Lambaro", UP3: "UP3 Banda Aceh", CustomerCount: n(500)},
			{Level: models.LevelULP, Name: "ULP Ghost", UP3: "UP3 Nowhere"},
		},
		Dusun: []models.DusunRecord{
			{Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Baiturrahman", Desa: "Seutui",
				Slots: [6]any{"Dusun Melati", "0", "Dusun Mawar", int32(0), "Dusun Kenanga", "Dusun Cempaka"}},
		},
	}
}

func TestBuild_InsertionOrderAndParents(t *testing.T) {
	tree, diags := Build(fixture(), nil)

	require.Len(t, diags, 1)
	assert.Equal(t, models.DiagOrphanNode, diags[0].Code)
	assert.Equal(t, "ULP Ghost", diags[0].Subject)

	provinces := tree.ChildrenOf(nil)
	require.Len(t, provinces, 1)
	assert.Equal(t, "Aceh", provinces[0].Name)

	kabs := tree.ChildrenOf(provinces[0])
	require.Len(t, kabs, 2)
	// source order, not alphabetical
	assert.Equal(t, "Banda Aceh", kabs[0].Name)
	assert.Equal(t, "Aceh Besar", kabs[1].Name)

	kec := tree.GetNode(models.LevelKecamatan, "baiturrahman")
	require.NotNil(t, kec)
	desas := tree.ChildrenOf(kec)
	require.Len(t, desas, 3)
	assert.Equal(t, []string{"Neusu Jaya", "Ateuk Jawo", "Seutui"}, []string{desas[0].Name, desas[1].Name, desas[2].Name})

	anc := tree.Ancestors(desas[0])
	require.Len(t, anc, 3)
	assert.Equal(t, models.LevelKecamatan, anc[0].Level)
	assert.Equal(t, models.LevelProvince, anc[2].Level)
}

func TestTree_GetNode_NameInsensitive(t *testing.T) {
	tree, _ := Build(fixture(), nil)

	for _, name := range []string{"Banda Aceh", "BANDA ACEH", "banda  aceh", " Banda\tAceh "} {
		node := tree.GetNode(models.LevelKabupaten, name)
		require.NotNil(t, node, name)
		assert.Equal(t, "Banda Aceh", node.Name)
	}
	assert.Nil(t, tree.GetNode(models.LevelKabupaten, "Sabang"))
	assert.Nil(t, tree.GetNode(models.LevelKecamatan, "Banda Aceh"))
}

func TestTree_Aggregate(t *testing.T) {
	tree, _ := Build(fixture(), nil)

	kec := tree.GetNode(models.LevelKecamatan, "Baiturrahman")
	c := tree.Aggregate(kec)
	require.NotNil(t, c.Population)
	// Seutui has no population and its dusun carry none either
	assert.Equal(t, int64(500), *c.Population)
	require.NotNil(t, c.CustomerCount)
	assert.Equal(t, int64(90), *c.CustomerCount)

	// the kabupaten's own 999999 is superseded by descendant data
	kab := tree.GetNode(models.LevelKabupaten, "Banda Aceh")
	kc := tree.Aggregate(kab)
	assert.Equal(t, int64(550), *kc.Population)

	// a leaf without data stays unknown rather than zero
	seutui := tree.ChildOf(kec, "seutui")
	require.NotNil(t, seutui)
	assert.Nil(t, tree.Aggregate(seutui).Population)

	root := tree.ChildrenOf(nil)[0]
	rc := tree.Aggregate(root)
	assert.Equal(t, int64(400550), *rc.Population)
	assert.Equal(t, int64(120090), *rc.CustomerCount)
}

func TestTree_Aggregate_EqualsLeafSum(t *testing.T) {
	tree, _ := Build(fixture(), nil)

	var leafSum int64
	var walk func(node *models.RegionNode)
	walk = func(node *models.RegionNode) {
		kids := tree.ChildrenOf(node)
		if len(kids) == 0 {
			if node.Population != nil {
				leafSum += *node.Population
			}
			return
		}
		for _, k := range kids {
			walk(k)
		}
	}
	root := tree.ChildrenOf(nil)[0]
	walk(root)

	assert.Equal(t, leafSum, *tree.Aggregate(root).Population)
}

func TestTree_Aggregate_ReturnsCopies(t *testing.T) {
	tree, _ := Build(fixture(), nil)
	kab := tree.GetNode(models.LevelKabupaten, "Banda Aceh")

	c := tree.Aggregate(kab)
	*c.Population = 1
	*c.CustomerCount = 1
	again := tree.Aggregate(kab)
	assert.Equal(t, int64(550), *again.Population)
	assert.Equal(t, int64(90), *again.CustomerCount)

	up3 := tree.OrgUnit(models.LevelUP3, "UP3 Banda Aceh")
	require.NotNil(t, up3)
	oc := tree.AggregateOrg(up3)
	require.NotNil(t, oc)
	*oc = 0
	assert.Equal(t, int64(1500), *tree.AggregateOrg(up3))
}

func TestTree_Aggregate_Concurrent(t *testing.T) {
	tree, _ := Build(fixture(), nil)
	root := tree.ChildrenOf(nil)[0]

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := tree.Aggregate(root)
			assert.Equal(t, int64(400550), *c.Population)
		}()
	}
	wg.Wait()
}

func TestBuild_DusunNodesSkipSentinels(t *testing.T) {
	tree, _ := Build(fixture(), nil)

	seutui := tree.GetNode(models.LevelDesa, "Seutui")
	require.NotNil(t, seutui)
	dusun := tree.ChildrenOf(seutui)
	require.Len(t, dusun, 4)
	assert.Equal(t, "Dusun Melati", dusun[0].Name)
	assert.Equal(t, "Dusun Cempaka", dusun[3].Name)

	summary := tree.Dusun()
	assert.Equal(t, 6, summary.TotalDusunRaw)
	assert.Equal(t, 4, summary.TotalDusunClean)
}

func TestBuild_Invariants(t *testing.T) {
	raw := &RawDataset{
		Regions: []RegionRecord{
			{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "Pidie"},
			{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "PIDIE"},
			{Level: models.LevelKecamatan, Province: "Aceh", Kabupaten: "Bireuen", Kecamatan: "Jeumpa"},
			{Level: models.LevelDesa, Province: "Aceh", Kabupaten: "Pidie", Kecamatan: "", Desa: "Blang"},
		},
	}
	tree, diags := Build(raw, nil)

	require.Len(t, diags, 3)
	assert.Equal(t, models.DiagDuplicateSibling, diags[0].Code)
	assert.Equal(t, models.DiagOrphanNode, diags[1].Code)
	assert.Equal(t, "Jeumpa", diags[1].Subject)
	assert.Equal(t, models.DiagOrphanNode, diags[2].Code)
	assert.Len(t, tree.Nodes(models.LevelKabupaten), 1)
	assert.Empty(t, tree.Nodes(models.LevelKecamatan))
}

func TestBuild_NameAliases(t *testing.T) {
	canon := names.NewCanon(map[models.Level]map[string]string{
		models.LevelDesa: {"Pulo Balai": "Pulau Balai"},
	})
	raw := &RawDataset{Regions: []RegionRecord{
		{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "Aceh Singkil"},
		{Level: models.LevelKecamatan, Province: "Aceh", Kabupaten: "Aceh Singkil", Kecamatan: "Pulau Banyak"},
		{Level: models.LevelDesa, Province: "Aceh", Kabupaten: "Aceh Singkil", Kecamatan: "Pulau Banyak", Desa: "Pulo Balai"},
	}}
	tree, diags := Build(raw, canon)
	require.Empty(t, diags)

	node := tree.GetNode(models.LevelDesa, "Pulau Balai")
	require.NotNil(t, node)
	assert.Equal(t, "Pulo Balai", node.Name)
	assert.Equal(t, "pulau balai", node.Key)
}

func TestTree_OrgUnits(t *testing.T) {
	tree, _ := Build(fixture(), nil)

	up3 := tree.OrgUnit(models.LevelUP3, "up3 banda aceh")
	require.NotNil(t, up3)
	ulps := tree.ULPsOf(up3)
	require.Len(t, ulps, 2)
	assert.Equal(t, "ULP Merduati", ulps[0].Name)

	// UP3 has no own count, so its ULPs are summed
	total := tree.AggregateOrg(up3)
	require.NotNil(t, total)
	assert.Equal(t, int64(1500), *total)
	assert.Nil(t, up3.CustomerCount)
}

func TestCountDusun(t *testing.T) {
	records := []models.DusunRecord{
		{Desa: "Lampulo", Slots: [6]any{"Dusun A", "0", "Dusun C", "Dusun D", "0", "Dusun F"}},
		{Desa: "Lamdingin", Slots: [6]any{"Dusun Utama", int32(0), nil, nil, nil, nil}},
	}
	s := CountDusun(records)

	require.Len(t, s.Desa, 2)
	assert.Equal(t, 6, s.Desa[0].Raw)
	assert.Equal(t, 4, s.Desa[0].Clean)
	assert.Equal(t, 2, s.Desa[1].Raw)
	assert.Equal(t, 1, s.Desa[1].Clean)
	assert.Equal(t, 8, s.TotalDusunRaw)
	assert.Equal(t, 5, s.TotalDusunClean)
}

type stubSource struct {
	raw *RawDataset
	err error
}

func (s stubSource) Fetch(context.Context) (*RawDataset, error) { return s.raw, s.err }

func TestLoader_Load(t *testing.T) {
	l := NewLoader(stubSource{raw: fixture()}, nil, logger.Nop())
	tree, diags, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, diags, 1)
	assert.NotNil(t, tree.GetNode(models.LevelKabupaten, "Aceh Besar"))
}

func TestLoader_Load_WrapsSourceFailure(t *testing.T) {
	l := NewLoader(stubSource{err: errors.New("connection refused")}, nil, logger.Nop())
	tree, _, err := l.Load(context.Background())

	require.Error(t, err)
	assert.Nil(t, tree)
	var dse *DataSourceError
	require.ErrorAs(t, err, &dse)
	assert.Contains(t, err.Error(), "connection refused")
}
