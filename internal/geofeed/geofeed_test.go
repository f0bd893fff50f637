package geofeed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/models"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kabupatenGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"Kab_Kota": "Banda Aceh", "KAB_KOTA": "IGNORED"},
     "geometry": {"type": "Polygon", "coordinates": [[[95.28,5.52],[95.36,5.52],[95.36,5.59],[95.28,5.59],[95.28,5.52]]]}},
    {"type": "Feature", "properties": {"KAB_KOTA": "ACEH  BESAR"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[95.2,5.2],[95.8,5.2],[95.8,5.6],[95.2,5.6],[95.2,5.2]]]]}},
    {"type": "Feature", "properties": {"NAMOBJ": "Sabang"},
     "geometry": {"type": "Polygon", "coordinates": [[[95.2,5.8],[95.4,5.8],[95.4,5.9],[95.2,5.9],[95.2,5.8]]]}},
    {"type": "Feature", "properties": {"Kab_Kota": "Pidie"},
     "geometry": {"type": "Point", "coordinates": [96.0, 5.2]}}
  ]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func newTestLoader() *Loader {
	return NewLoader(DefaultAliases(), nil, nil, logger.Nop())
}

func TestLoader_LoadLevel(t *testing.T) {
	path := writeFile(t, "kabupaten.geojson", kabupatenGeoJSON)

	res, err := newTestLoader().LoadLevel(context.Background(), models.LevelKabupaten, path)
	require.NoError(t, err)

	require.Len(t, res.Features, 2)
	// Kab_Kota has priority over KAB_KOTA
	assert.Equal(t, "Banda Aceh", res.Features[0].Name)
	assert.Equal(t, "banda aceh", res.Features[0].RegionKey)
	assert.Equal(t, "aceh besar", res.Features[1].RegionKey)
	assert.IsType(t, orb.MultiPolygon{}, res.Features[1].Geometry)

	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, models.DiagMalformedFeature, res.Diagnostics[0].Code)
	assert.Contains(t, res.Diagnostics[0].Subject, "#2")
	assert.Contains(t, res.Diagnostics[1].Message, "not polygonal")
}

func TestLoader_LoadLevel_MissingNameKeyIsNotFatal(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"name":"Lhokseumawe"},
	   "geometry":{"type":"Polygon","coordinates":[[[97.0,5.1],[97.2,5.1],[97.2,5.3],[97.0,5.1]]]}}]}`
	path := writeFile(t, "only_bad.geojson", body)

	res, err := newTestLoader().LoadLevel(context.Background(), models.LevelKabupaten, path)

	require.NoError(t, err)
	assert.Empty(t, res.Features)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Message, "Kab_Kota")
}

func TestLoader_LoadLevel_SourceErrors(t *testing.T) {
	l := newTestLoader()

	_, err := l.LoadLevel(context.Background(), models.LevelKabupaten, filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.geojson", `{"type":"FeatureCollection","features":[`)
	_, err = l.LoadLevel(context.Background(), models.LevelKabupaten, bad)
	assert.Error(t, err)

	_, err = l.LoadLevel(context.Background(), models.LevelKabupaten, "postgis:app.batas_kabupaten")
	assert.ErrorContains(t, err, "no database configured")
}

func TestLoadAliases(t *testing.T) {
	path := writeFile(t, "aliases.json", `{
	  "propertyAliases": {"kabupaten": ["WADMKK"]},
	  "nameAliases": {"desa": {"Pulo Balai": "Pulau Balai"}}
	}`)

	aliases, canon, err := LoadAliases(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"WADMKK"}, aliases.Name[models.LevelKabupaten])
	assert.Equal(t, DefaultAliases().Name[models.LevelDesa], aliases.Name[models.LevelDesa])
	assert.Equal(t, "pulau balai", canon.Key(models.LevelDesa, "PULO BALAI"))

	name, ok := aliases.ResolveName(models.LevelKabupaten, map[string]any{"WADMKK": "Aceh Jaya", "Kab_Kota": "x"})
	assert.True(t, ok)
	assert.Equal(t, "Aceh Jaya", name)

	badLevel := writeFile(t, "bad.json", `{"propertyAliases": {"rt": ["X"]}}`)
	_, _, err = LoadAliases(badLevel)
	assert.Error(t, err)
}

func TestResolve_SkipsEmptyValues(t *testing.T) {
	a := DefaultAliases()
	name, ok := a.ResolveName(models.LevelKabupaten, map[string]any{"Kab_Kota": "  ", "KAB_KOTA": "Bireuen"})
	assert.True(t, ok)
	assert.Equal(t, "Bireuen", name)

	_, ok = a.ResolveName(models.LevelKabupaten, map[string]any{"Kab_Kota": nil})
	assert.False(t, ok)
}

func n(v int64) *int64 { return &v }

func joinTree() *hierarchy.Tree {
	raw := &hierarchy.RawDataset{
		Regions: []hierarchy.RegionRecord{
			{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "Banda Aceh"},
			{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "Aceh Besar"},
			{Level: models.LevelKecamatan, Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Kuta Alam"},
			{Level: models.LevelKecamatan, Province: "Aceh", Kabupaten: "Aceh Besar", Kecamatan: "Kuta Baro"},
			{Level: models.LevelDesa, Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Kuta Alam", Desa: "Lampulo"},
			{Level: models.LevelDesa, Province: "Aceh", Kabupaten: "Aceh Besar", Kecamatan: "Kuta Baro", Desa: "Lampulo"},
		},
		Orgs: []hierarchy.OrgRecord{
			{Level: models.LevelUP3, Name: "UP3 Banda Aceh", CustomerCount: n(10)},
		},
	}
	tree, _ := hierarchy.Build(raw, nil)
	return tree
}

func square() orb.Polygon {
	return orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
}

func TestJoinToHierarchy(t *testing.T) {
	tree := joinTree()
	features := []models.GeoFeature{
		{Level: models.LevelKabupaten, Name: "BANDA ACEH", RegionKey: "banda aceh", Geometry: square()},
		{Level: models.LevelKabupaten, Name: "Banda  Aceh", RegionKey: "banda aceh", Geometry: square()},
		{Level: models.LevelKabupaten, Name: "Aceh Tengah", RegionKey: "aceh tengah", Geometry: square()},
		{Level: models.LevelDesa, Name: "Lampulo", RegionKey: "lampulo", Geometry: square()},
		{Level: models.LevelDesa, Name: "Lampulo", RegionKey: "lampulo", ParentKey: "kuta baro", Geometry: square()},
	}

	res := JoinToHierarchy(features, tree)

	require.Len(t, res.Joined, 2)
	assert.Equal(t, "Banda Aceh", res.Joined[0].Node.Name)
	assert.Equal(t, "Lampulo", res.Joined[1].Node.Name)
	assert.Equal(t, "kuta baro", tree.Parent(res.Joined[1].Node).Key)

	require.Len(t, res.Unmatched, 3)
	require.Len(t, res.Diagnostics, 3)
	assert.Equal(t, "region already has a boundary", res.Diagnostics[0].Message)
	assert.Equal(t, "no region with this name", res.Diagnostics[1].Message)
	assert.Equal(t, "name shared by several regions", res.Diagnostics[2].Message)
	for _, d := range res.Diagnostics {
		assert.Equal(t, models.DiagUnresolvedJoin, d.Code)
	}
}

func TestJoinToOrgUnits(t *testing.T) {
	tree := joinTree()
	res := JoinToOrgUnits([]models.GeoFeature{
		{Level: models.LevelUP3, Name: "UP3 Banda Aceh", RegionKey: "up3 banda aceh", Geometry: square()},
		{Level: models.LevelUP3, Name: "UP3 Langsa", RegionKey: "up3 langsa", Geometry: square()},
	}, tree)

	require.Len(t, res.Joined, 1)
	assert.Equal(t, "UP3 Banda Aceh", res.Joined[0].Unit.Name)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "UP3 Langsa", res.Unmatched[0].Name)
}

func TestPropertyInventory(t *testing.T) {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(kabupatenGeoJSON))
	require.NoError(t, err)

	inv := PropertyInventory(fc)
	require.Len(t, inv, 3)
	// ties break on key, byte order
	assert.Equal(t, KeyCount{Key: "KAB_KOTA", Count: 2}, inv[0])
	assert.Equal(t, KeyCount{Key: "Kab_Kota", Count: 2}, inv[1])
	assert.Equal(t, KeyCount{Key: "NAMOBJ", Count: 1}, inv[2])
}
