package geofeed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/names"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PostGISPrefix marks a source path that names a PostGIS table instead of a
// GeoJSON file, e.g. "postgis:app.batas_desa".
const PostGISPrefix = "postgis:"

// LevelResult is the outcome of loading one level. Diagnostics hold one
// *MalformedFeatureError per excluded feature.
type LevelResult struct {
	Level       models.Level
	Source      string
	Features    []models.GeoFeature
	Diagnostics []models.Diagnostic
	Skipped     int
}

type Loader struct {
	aliases PropertyAliases
	canon   *names.Canon
	db      *bun.DB
	logr    *logger.Logger
}

// NewLoader builds a feed loader. db may be nil when no level is read from
// PostGIS.
func NewLoader(aliases PropertyAliases, canon *names.Canon, db *bun.DB, logr *logger.Logger) *Loader {
	return &Loader{aliases: aliases, canon: canon, db: db, logr: logr}
}

// LoadLevel reads the boundaries of one level. A source that cannot be read
// or parsed fails the call; individual bad features only land in the
// result's diagnostics.
func (l *Loader) LoadLevel(ctx context.Context, level models.Level, sourcePath string) (*LevelResult, error) {
	fc, err := l.ReadCollection(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	res := &LevelResult{Level: level, Source: sourcePath}
	for i, f := range fc.Features {
		gf, ferr := l.toGeoFeature(level, f)
		if ferr != nil {
			ferr.Source = sourcePath
			ferr.Index = i
			res.Diagnostics = append(res.Diagnostics, ferr.Diagnostic())
			res.Skipped++
			continue
		}
		res.Features = append(res.Features, gf)
	}

	if res.Skipped > 0 {
		l.logr.Warn("features skipped",
			zap.String("level", string(level)),
			zap.String("source", sourcePath),
			zap.Int("skipped", res.Skipped))
	}
	l.logr.Debug("geo level loaded",
		zap.String("level", string(level)),
		zap.String("source", sourcePath),
		zap.Int("features", len(res.Features)))
	return res, nil
}

// ReadCollection returns the raw FeatureCollection behind a source path.
func (l *Loader) ReadCollection(ctx context.Context, sourcePath string) (*geojson.FeatureCollection, error) {
	if table, ok := strings.CutPrefix(sourcePath, PostGISPrefix); ok {
		return l.readPostGIS(ctx, table)
	}

	b, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("read geojson %s: %w", sourcePath, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parse geojson %s: %w", sourcePath, err)
	}
	return fc, nil
}

// readPostGIS converts table rows into features: every non-geometry column
// becomes a property.
func (l *Loader) readPostGIS(ctx context.Context, table string) (*geojson.FeatureCollection, error) {
	if l.db == nil {
		return nil, fmt.Errorf("postgis source %s: no database configured", table)
	}

	var rows []struct {
		Props   json.RawMessage `bun:"props"`
		GeoJSON string          `bun:"geojson"`
	}
	err := l.db.NewSelect().
		ColumnExpr("to_jsonb(t) - 'the_geom' AS props").
		ColumnExpr("ST_AsGeoJSON(t.the_geom) AS geojson").
		TableExpr("? AS t", bun.Ident(table)).
		Where("t.the_geom IS NOT NULL").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("query postgis %s: %w", table, err)
	}

	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		var geom orb.Geometry
		if g, err := geojson.UnmarshalGeometry([]byte(row.GeoJSON)); err == nil {
			geom = g.Geometry()
		}
		f := geojson.NewFeature(geom)
		if len(row.Props) > 0 {
			if err := json.Unmarshal(row.Props, &f.Properties); err != nil {
				f.Properties = geojson.Properties{}
			}
		}
		fc.Append(f)
	}
	return fc, nil
}

func (l *Loader) toGeoFeature(level models.Level, f *geojson.Feature) (models.GeoFeature, *MalformedFeatureError) {
	props := map[string]any(f.Properties)
	name, ok := l.aliases.ResolveName(level, props)
	if !ok {
		return models.GeoFeature{}, &MalformedFeatureError{
			Level:  level,
			Reason: fmt.Sprintf("none of %v present", l.aliases.Name[level]),
		}
	}

	switch f.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
	case nil:
		return models.GeoFeature{}, &MalformedFeatureError{Level: level, Reason: "missing geometry"}
	default:
		return models.GeoFeature{}, &MalformedFeatureError{
			Level:  level,
			Reason: fmt.Sprintf("geometry %s is not polygonal", f.Geometry.GeoJSONType()),
		}
	}

	gf := models.GeoFeature{
		RegionKey:  l.canon.Key(level, name),
		Level:      level,
		Name:       strings.TrimSpace(name),
		Geometry:   f.Geometry,
		Properties: props,
	}
	if parent, ok := l.aliases.ResolveParent(level, props); ok {
		if pl, ok := level.Parent(); ok {
			gf.ParentKey = l.canon.Key(pl, parent)
		}
	}
	return gf, nil
}
