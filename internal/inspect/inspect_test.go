package inspect

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"sipeta-bknd/internal/geofeed"
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/models"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f fakeCounter) CollectionCounts(context.Context) (map[string]int64, error) {
	return f.counts, f.err
}

func testTree() *hierarchy.Tree {
	raw := &hierarchy.RawDataset{
		Regions: []hierarchy.RegionRecord{
			{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "Banda Aceh"},
			{Level: models.LevelKabupaten, Province: "Aceh", Kabupaten: "Aceh Besar"},
			{Level: models.LevelKecamatan, Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Kuta Alam"},
		},
		Orgs: []hierarchy.OrgRecord{
			{Level: models.LevelUP3, Name: "UP3 Banda Aceh"},
			{Level: models.LevelUP3, Name: "UP3 Langsa"},
		},
		Dusun: []models.DusunRecord{
			{Province: "Aceh", Kabupaten: "Banda Aceh", Kecamatan: "Kuta Alam", Desa: "Lampulo",
				Slots: [6]any{"Dusun A", "0", "Dusun B", nil, nil, nil}},
		},
	}
	tree, _ := hierarchy.Build(raw, nil)
	return tree
}

func square() orb.Polygon {
	return orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
}

func TestCounts(t *testing.T) {
	rows, err := Counts(context.Background(), fakeCounter{counts: map[string]int64{"desa": 3, "batas_kabupaten": 1, "kecamatan": 2}})
	require.NoError(t, err)
	assert.Equal(t, []CountRow{{"batas_kabupaten", 1}, {"desa", 3}, {"kecamatan", 2}}, rows)

	var buf bytes.Buffer
	require.NoError(t, PrintCounts(&buf, rows))
	assert.Contains(t, buf.String(), "COLLECTION")
	assert.Regexp(t, `desa\s+3`, buf.String())

	_, err = Counts(context.Background(), fakeCounter{err: errors.New("down")})
	assert.EqualError(t, err, "down")
}

func TestPrintFields(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f1 := geojson.NewFeature(square())
	f1.Properties["KAB_KOTA"] = "Banda Aceh"
	f2 := geojson.NewFeature(square())
	f2.Properties["KAB_KOTA"] = "Aceh Besar"
	f2.Properties["NAMOBJ"] = "x"
	fc.Append(f1)
	fc.Append(f2)

	var buf bytes.Buffer
	require.NoError(t, PrintFields(&buf, fc))
	out := buf.String()
	assert.Contains(t, out, "features: 2")
	assert.Regexp(t, `KAB_KOTA\s+2`, out)
	assert.Regexp(t, `NAMOBJ\s+1`, out)
}

func TestPrintDusun(t *testing.T) {
	s := testTree().Dusun()

	var buf bytes.Buffer
	require.NoError(t, PrintDusun(&buf, s, true))
	out := buf.String()
	assert.Contains(t, out, "Lampulo")
	assert.Regexp(t, `total dusun \(raw\)\s+3`, out)
	assert.Regexp(t, `total dusun \(clean\)\s+2`, out)
}

func TestWriteDusunXLSX(t *testing.T) {
	s := testTree().Dusun()
	path := filepath.Join(t.TempDir(), "dusun.xlsx")
	require.NoError(t, WriteDusunXLSX(path, s))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{dusunSheet, summarySheet}, f.GetSheetList())
	v, err := f.GetCellValue(dusunSheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "Lampulo", v)
	v, err = f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestSheetWriter_KeepsFirstError(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	w := &sheetWriter{f: f, sheet: "Missing"}
	w.set(1, 1, "x")
	require.Error(t, w.err)
	first := w.err
	w.set(0, 1, "bad coordinates")
	w.width("A", "A", 10)
	assert.Equal(t, first, w.err)

	ok := &sheetWriter{f: f, sheet: "Sheet1"}
	ok.set(2, 3, 7)
	ok.width("A", "B", 12)
	require.NoError(t, ok.err)
	v, err := f.GetCellValue("Sheet1", "B3")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
}

func TestWriteDusunXLSX_SaveError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "dusun.xlsx")
	err := WriteDusunXLSX(path, testTree().Dusun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save ")
}

func TestJoin_Regions(t *testing.T) {
	tree := testTree()
	lr := &geofeed.LevelResult{
		Level: models.LevelKabupaten,
		Features: []models.GeoFeature{
			{Level: models.LevelKabupaten, Name: "BANDA ACEH", RegionKey: "banda aceh", Geometry: square()},
			{Level: models.LevelKabupaten, Name: "Aceh Tengah", RegionKey: "aceh tengah", Geometry: square()},
		},
		Skipped: 1,
	}

	rep := Join(tree, lr)
	assert.Equal(t, 3, rep.Features)
	assert.Equal(t, 1, rep.Joined)
	assert.Equal(t, []string{"Aceh Besar (Aceh)"}, rep.Missing)
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, models.DiagUnresolvedJoin, rep.Diagnostics[0].Code)

	var buf bytes.Buffer
	require.NoError(t, PrintJoin(&buf, rep))
	assert.Contains(t, buf.String(), "Aceh Tengah")
	assert.Contains(t, buf.String(), "Aceh Besar (Aceh)")
}

func TestJoin_OrgUnits(t *testing.T) {
	rep := Join(testTree(), &geofeed.LevelResult{
		Level: models.LevelUP3,
		Features: []models.GeoFeature{
			{Level: models.LevelUP3, Name: "UP3 Banda Aceh", RegionKey: "up3 banda aceh", Geometry: square()},
		},
	})
	assert.Equal(t, 1, rep.Joined)
	assert.Equal(t, []string{"UP3 Langsa"}, rep.Missing)
	assert.Empty(t, rep.Diagnostics)
}

func TestSearchNames(t *testing.T) {
	tree := testTree()
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(square())
	f.Properties["KAB_KOTA"] = "Kota Banda Aceh"
	f.Properties["PROVINSI"] = "Aceh"
	fc.Append(f)
	other := geojson.NewFeature(square())
	other.Properties["KAB_KOTA"] = "Pidie"
	fc.Append(other)

	hits := SearchNames(tree, fc, geofeed.DefaultAliases(), models.LevelKabupaten, regexp.MustCompile(`(?i)banda`))
	require.Len(t, hits, 2)
	assert.Equal(t, NameHit{Source: "hierarchy", Level: models.LevelKabupaten, Name: "Banda Aceh", Key: "banda aceh", Parent: "Aceh"}, hits[0])
	assert.Equal(t, "geo", hits[1].Source)
	assert.Equal(t, "Kota Banda Aceh", hits[1].Name)
	assert.Equal(t, "Aceh", hits[1].Parent)

	orgs := SearchNames(tree, nil, geofeed.DefaultAliases(), models.LevelUP3, regexp.MustCompile(`Langsa`))
	require.Len(t, orgs, 1)
	assert.Equal(t, "UP3 Langsa", orgs[0].Name)

	var buf bytes.Buffer
	require.NoError(t, PrintNames(&buf, hits))
	assert.Contains(t, buf.String(), "Kota Banda Aceh")
}
