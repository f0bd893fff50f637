package hierarchy

import (
	"context"
	"math"
	"strconv"
	"strings"

	"sipeta-bknd/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names in the SIPETA database.
const (
	CollKabupaten = "kabupaten_kotas"
	CollKecamatan = "kecamatans"
	CollDesa      = "desas"
	CollUP3       = "Up3"
	CollULP       = "Ulp"
)

// Collections lists every collection the hierarchy reads.
var Collections = []string{CollKabupaten, CollKecamatan, CollDesa, CollUP3, CollULP}

// Numeric fields are decoded as raw values: the collections mix int32,
// int64, double and numeric strings, and absence must stay distinguishable
// from zero.
type kabupatenDoc struct {
	Provinsi       string        `bson:"provinsi"`
	Kabupaten      string        `bson:"kabupaten"`
	JumlahPenduduk bson.RawValue `bson:"jumlah_penduduk"`
	Pelanggan      bson.RawValue `bson:"pelanggan"`
	Status         string        `bson:"status"`
}

type kecamatanDoc struct {
	Provinsi       string        `bson:"provinsi"`
	Kabupaten      string        `bson:"kabupaten"`
	Kecamatan      string        `bson:"kecamatan"`
	JumlahPenduduk bson.RawValue `bson:"jumlah_penduduk"`
	Pelanggan      bson.RawValue `bson:"pelanggan"`
	Status         string        `bson:"status"`
}

type desaDoc struct {
	Provinsi       string        `bson:"provinsi"`
	Kabupaten      string        `bson:"kabupaten"`
	Kecamatan      string        `bson:"kecamatan"`
	Desa           string        `bson:"desa"`
	JumlahPenduduk bson.RawValue `bson:"jumlah_penduduk"`
	Pelanggan      bson.RawValue `bson:"pelanggan"`
	Status         string        `bson:"status"`
	DusunA         bson.RawValue `bson:"dusun_a"`
	DusunB         bson.RawValue `bson:"dusun_b"`
	DusunC         bson.RawValue `bson:"dusun_c"`
	DusunD         bson.RawValue `bson:"dusun_d"`
	DusunE         bson.RawValue `bson:"dusun_e"`
	DusunF         bson.RawValue `bson:"dusun_f"`
}

type up3Doc struct {
	NamaUP3   string        `bson:"nama_up3"`
	Pelanggan bson.RawValue `bson:"pelanggan"`
	Status    string        `bson:"status"`
}

type ulpDoc struct {
	NamaULP   string        `bson:"nama_ulp"`
	NamaUP3   string        `bson:"nama_up3"`
	Pelanggan bson.RawValue `bson:"pelanggan"`
	Status    string        `bson:"status"`
}

// MongoSource reads the hierarchy from the SIPETA Mongo collections. The
// database handle is injected; the source never opens or closes it.
type MongoSource struct {
	db              *mongo.Database
	defaultProvince string
}

func NewMongoSource(db *mongo.Database, defaultProvince string) *MongoSource {
	return &MongoSource{db: db, defaultProvince: defaultProvince}
}

func (s *MongoSource) Fetch(ctx context.Context) (*RawDataset, error) {
	var kabs []kabupatenDoc
	if err := s.findAll(ctx, CollKabupaten, &kabs); err != nil {
		return nil, err
	}
	var kecs []kecamatanDoc
	if err := s.findAll(ctx, CollKecamatan, &kecs); err != nil {
		return nil, err
	}
	var desas []desaDoc
	if err := s.findAll(ctx, CollDesa, &desas); err != nil {
		return nil, err
	}
	var up3s []up3Doc
	if err := s.findAll(ctx, CollUP3, &up3s); err != nil {
		return nil, err
	}
	var ulps []ulpDoc
	if err := s.findAll(ctx, CollULP, &ulps); err != nil {
		return nil, err
	}

	raw := &RawDataset{}
	for _, d := range kabs {
		raw.Regions = append(raw.Regions, RegionRecord{
			Level:         models.LevelKabupaten,
			Province:      s.province(d.Provinsi),
			Kabupaten:     d.Kabupaten,
			Population:    rawCount(d.JumlahPenduduk),
			CustomerCount: rawCount(d.Pelanggan),
			Status:        d.Status,
		})
	}
	for _, d := range kecs {
		raw.Regions = append(raw.Regions, RegionRecord{
			Level:         models.LevelKecamatan,
			Province:      s.province(d.Provinsi),
			Kabupaten:     d.Kabupaten,
			Kecamatan:     d.Kecamatan,
			Population:    rawCount(d.JumlahPenduduk),
			CustomerCount: rawCount(d.Pelanggan),
			Status:        d.Status,
		})
	}
	for _, d := range desas {
		prov := s.province(d.Provinsi)
		raw.Regions = append(raw.Regions, RegionRecord{
			Level:         models.LevelDesa,
			Province:      prov,
			Kabupaten:     d.Kabupaten,
			Kecamatan:     d.Kecamatan,
			Desa:          d.Desa,
			Population:    rawCount(d.JumlahPenduduk),
			CustomerCount: rawCount(d.Pelanggan),
			Status:        d.Status,
		})
		raw.Dusun = append(raw.Dusun, models.DusunRecord{
			Province:  prov,
			Kabupaten: d.Kabupaten,
			Kecamatan: d.Kecamatan,
			Desa:      d.Desa,
			Slots: [6]any{
				rawSlot(d.DusunA), rawSlot(d.DusunB), rawSlot(d.DusunC),
				rawSlot(d.DusunD), rawSlot(d.DusunE), rawSlot(d.DusunF),
			},
		})
	}
	for _, d := range up3s {
		raw.Orgs = append(raw.Orgs, OrgRecord{
			Level:         models.LevelUP3,
			Name:          d.NamaUP3,
			CustomerCount: rawCount(d.Pelanggan),
			Status:        d.Status,
		})
	}
	for _, d := range ulps {
		raw.Orgs = append(raw.Orgs, OrgRecord{
			Level:         models.LevelULP,
			Name:          d.NamaULP,
			UP3:           d.NamaUP3,
			CustomerCount: rawCount(d.Pelanggan),
			Status:        d.Status,
		})
	}
	return raw, nil
}

// CollectionCounts returns the document count of every hierarchy collection.
func (s *MongoSource) CollectionCounts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Collections))
	for _, name := range Collections {
		n, err := s.db.Collection(name).CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, &DataSourceError{Source: "mongo:" + name, Err: err}
		}
		out[name] = n
	}
	return out, nil
}

func (s *MongoSource) findAll(ctx context.Context, coll string, out any) error {
	cur, err := s.db.Collection(coll).Find(ctx, bson.D{})
	if err != nil {
		return &DataSourceError{Source: "mongo:" + coll, Err: err}
	}
	if err := cur.All(ctx, out); err != nil {
		return &DataSourceError{Source: "mongo:" + coll, Err: err}
	}
	return nil
}

func (s *MongoSource) province(p string) string {
	if strings.TrimSpace(p) == "" {
		return s.defaultProvince
	}
	return p
}

// rawCount converts a numeric field. Missing, null, negative or
// non-numeric values are unknown.
func rawCount(v bson.RawValue) *int64 {
	var n int64
	switch v.Type {
	case bsontype.Int32:
		n = int64(v.Int32())
	case bsontype.Int64:
		n = v.Int64()
	case bsontype.Double:
		f := v.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		n = int64(math.Round(f))
	case bsontype.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.StringValue()), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if n < 0 {
		return nil
	}
	return &n
}

// rawSlot keeps the source form of a dusun slot so "0" and 0 are both
// recognizable as sentinels.
func rawSlot(v bson.RawValue) any {
	switch v.Type {
	case bsontype.String:
		return v.StringValue()
	case bsontype.Int32:
		return v.Int32()
	case bsontype.Int64:
		return v.Int64()
	case bsontype.Double:
		return v.Double()
	}
	return nil
}
