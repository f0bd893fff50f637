// Package app opens the backing stores named by the configuration and
// assembles the loaders shared by the server and the inspect tool.
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sipeta-bknd/internal/config"
	"sipeta-bknd/internal/database"
	"sipeta-bknd/internal/geofeed"
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/mapdata"
	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/names"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type Deps struct {
	DB    *bun.DB
	Mongo *database.Mongo

	Source     hierarchy.Source
	Canon      *names.Canon
	Aliases    geofeed.PropertyAliases
	Hierarchy  *hierarchy.Loader
	Feeds      *geofeed.Loader
	GeoSources map[models.Level]string

	logr *logger.Logger
}

// Open connects to every configured store. The caller must Close the
// result.
func Open(ctx context.Context, cfg *config.Config, logr *logger.Logger) (*Deps, error) {
	d := &Deps{logr: logr}

	aliases, canon, err := geofeed.LoadAliases(cfg.GeoAliasFile)
	if err != nil {
		return nil, err
	}
	d.Aliases, d.Canon = aliases, canon

	d.GeoSources, err = GeoSources(cfg.GeoSources)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		d.DB, err = database.New(cfg.DatabaseURL, cfg)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.HierarchySource {
	case "mongo":
		d.Mongo, err = database.OpenMongo(ctx, cfg)
		if err != nil {
			d.Close(context.Background())
			return nil, &hierarchy.DataSourceError{Source: "mongo", Err: err}
		}
		d.Source = hierarchy.NewMongoSource(d.Mongo.DB, cfg.DefaultProvince)
	case "postgres":
		if d.DB == nil {
			d.Close(context.Background())
			return nil, fmt.Errorf("HIERARCHY_SOURCE=postgres requires DATABASE_URL")
		}
		d.Source = hierarchy.NewPostgresSource(d.DB, cfg.DefaultProvince)
	default:
		d.Close(context.Background())
		return nil, fmt.Errorf("unknown HIERARCHY_SOURCE %q", cfg.HierarchySource)
	}

	for level, path := range d.GeoSources {
		if d.DB == nil && strings.HasPrefix(path, geofeed.PostGISPrefix) {
			d.Close(context.Background())
			return nil, fmt.Errorf("geo source %s=%s requires DATABASE_URL", level, path)
		}
	}

	d.Hierarchy = hierarchy.NewLoader(d.Source, d.Canon, logr.Named("hierarchy"))
	d.Feeds = geofeed.NewLoader(d.Aliases, d.Canon, d.DB, logr.Named("geofeed"))
	return d, nil
}

// Store builds a dataset store over the opened loaders.
func (d *Deps) Store() *mapdata.Store {
	return mapdata.NewStore(d.Hierarchy, d.Feeds, d.GeoSources, d.logr.Named("mapdata"))
}

func (d *Deps) Close(ctx context.Context) {
	if d.Mongo != nil {
		if err := d.Mongo.Close(ctx); err != nil {
			d.logr.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// GeoSources turns configured "level=path" pairs into levels. Unknown
// level names are an error.
func GeoSources(raw map[string]string) (map[models.Level]string, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[models.Level]string, len(raw))
	for _, k := range keys {
		level, ok := models.ParseLevel(k)
		if !ok {
			return nil, fmt.Errorf("GEO_SOURCES: unknown level %q", k)
		}
		if _, dup := out[level]; dup {
			return nil, fmt.Errorf("GEO_SOURCES: level %q listed twice", level)
		}
		out[level] = raw[k]
	}
	return out, nil
}
