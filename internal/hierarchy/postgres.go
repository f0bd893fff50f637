package hierarchy

import (
	"context"

	"sipeta-bknd/internal/models"

	"github.com/uptrace/bun"
)

type kabupatenRow struct {
	bun.BaseModel `bun:"table:app.kabupaten_kotas,alias:kk"`

	Provinsi       *string `bun:"provinsi"`
	Kabupaten      string  `bun:"kabupaten"`
	JumlahPenduduk *int64  `bun:"jumlah_penduduk"`
	Pelanggan      *int64  `bun:"pelanggan"`
	Status         *string `bun:"status"`
}

type kecamatanRow struct {
	bun.BaseModel `bun:"table:app.kecamatans,alias:kc"`

	Provinsi       *string `bun:"provinsi"`
	Kabupaten      string  `bun:"kabupaten"`
	Kecamatan      string  `bun:"kecamatan"`
	JumlahPenduduk *int64  `bun:"jumlah_penduduk"`
	Pelanggan      *int64  `bun:"pelanggan"`
	Status         *string `bun:"status"`
}

type desaRow struct {
	bun.BaseModel `bun:"table:app.desas,alias:ds"`

	Provinsi       *string `bun:"provinsi"`
	Kabupaten      string  `bun:"kabupaten"`
	Kecamatan      string  `bun:"kecamatan"`
	Desa           string  `bun:"desa"`
	JumlahPenduduk *int64  `bun:"jumlah_penduduk"`
	Pelanggan      *int64  `bun:"pelanggan"`
	Status         *string `bun:"status"`
	DusunA         *string `bun:"dusun_a"`
	DusunB         *string `bun:"dusun_b"`
	DusunC         *string `bun:"dusun_c"`
	DusunD         *string `bun:"dusun_d"`
	DusunE         *string `bun:"dusun_e"`
	DusunF         *string `bun:"dusun_f"`
}

type orgRow struct {
	bun.BaseModel `bun:"table:app.org_units,alias:ou"`

	Level     string  `bun:"level"`
	Name      string  `bun:"name"`
	NamaUP3   *string `bun:"nama_up3"`
	Pelanggan *int64  `bun:"pelanggan"`
	Status    *string `bun:"status"`
}

// PostgresSource reads the same hierarchy from relational tables in the
// app schema. Rows come back in primary-key order so ChildrenOf stays
// stable across loads.
type PostgresSource struct {
	db              *bun.DB
	defaultProvince string
}

func NewPostgresSource(db *bun.DB, defaultProvince string) *PostgresSource {
	return &PostgresSource{db: db, defaultProvince: defaultProvince}
}

func (s *PostgresSource) Fetch(ctx context.Context) (*RawDataset, error) {
	var kabs []kabupatenRow
	if err := s.db.NewSelect().Model(&kabs).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, &DataSourceError{Source: "postgres:kabupaten_kotas", Err: err}
	}
	var kecs []kecamatanRow
	if err := s.db.NewSelect().Model(&kecs).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, &DataSourceError{Source: "postgres:kecamatans", Err: err}
	}
	var desas []desaRow
	if err := s.db.NewSelect().Model(&desas).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, &DataSourceError{Source: "postgres:desas", Err: err}
	}
	var orgs []orgRow
	if err := s.db.NewSelect().Model(&orgs).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, &DataSourceError{Source: "postgres:org_units", Err: err}
	}

	raw := &RawDataset{}
	for _, r := range kabs {
		raw.Regions = append(raw.Regions, RegionRecord{
			Level:         models.LevelKabupaten,
			Province:      s.province(r.Provinsi),
			Kabupaten:     r.Kabupaten,
			Population:    r.JumlahPenduduk,
			CustomerCount: r.Pelanggan,
			Status:        deref(r.Status),
		})
	}
	for _, r := range kecs {
		raw.Regions = append(raw.Regions, RegionRecord{
			Level:         models.LevelKecamatan,
			Province:      s.province(r.Provinsi),
			Kabupaten:     r.Kabupaten,
			Kecamatan:     r.Kecamatan,
			Population:    r.JumlahPenduduk,
			CustomerCount: r.Pelanggan,
			Status:        deref(r.Status),
		})
	}
	for _, r := range desas {
		prov := s.province(r.Provinsi)
		raw.Regions = append(raw.Regions, RegionRecord{
			Level:         models.LevelDesa,
			Province:      prov,
			Kabupaten:     r.Kabupaten,
			Kecamatan:     r.Kecamatan,
			Desa:          r.Desa,
			Population:    r.JumlahPenduduk,
			CustomerCount: r.Pelanggan,
			Status:        deref(r.Status),
		})
		raw.Dusun = append(raw.Dusun, models.DusunRecord{
			Province:  prov,
			Kabupaten: r.Kabupaten,
			Kecamatan: r.Kecamatan,
			Desa:      r.Desa,
			Slots: [6]any{
				slot(r.DusunA), slot(r.DusunB), slot(r.DusunC),
				slot(r.DusunD), slot(r.DusunE), slot(r.DusunF),
			},
		})
	}
	for _, r := range orgs {
		level, ok := models.ParseLevel(r.Level)
		if !ok || !level.IsOrg() {
			continue
		}
		raw.Orgs = append(raw.Orgs, OrgRecord{
			Level:         level,
			Name:          r.Name,
			UP3:           deref(r.NamaUP3),
			CustomerCount: r.Pelanggan,
			Status:        deref(r.Status),
		})
	}
	return raw, nil
}

func (s *PostgresSource) province(p *string) string {
	if v := deref(p); v != "" {
		return v
	}
	return s.defaultProvince
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func slot(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// CollectionCounts returns the row count of every hierarchy table.
func (s *PostgresSource) CollectionCounts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, 4)
	for name, model := range map[string]interface{}{
		"kabupaten_kotas": (*kabupatenRow)(nil),
		"kecamatans":      (*kecamatanRow)(nil),
		"desas":           (*desaRow)(nil),
		"org_units":       (*orgRow)(nil),
	} {
		n, err := s.db.NewSelect().Model(model).Count(ctx)
		if err != nil {
			return nil, &DataSourceError{Source: "postgres:" + name, Err: err}
		}
		out[name] = int64(n)
	}
	return out, nil
}
