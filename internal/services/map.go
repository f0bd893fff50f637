package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sipeta-bknd/internal/cache"
	"sipeta-bknd/internal/composer"
	"sipeta-bknd/internal/config"
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/mapdata"
	"sipeta-bknd/internal/metrics"
	"sipeta-bknd/internal/models"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("name matches several regions")
)

type MapService struct {
	store  *mapdata.Store
	runner *composer.Runner
	cache  *cache.FeedCache
	cfg    *config.Config
	logr   *logger.Logger
}

func NewMapService(store *mapdata.Store, feedCache *cache.FeedCache, cfg *config.Config, logr *logger.Logger) *MapService {
	return &MapService{
		store:  store,
		runner: composer.NewRunner(),
		cache:  feedCache,
		cfg:    cfg,
		logr:   logr,
	}
}

type ClientConfig struct {
	APIBaseURL    string `json:"apiBaseUrl"`
	DataSourceURL string `json:"dataSourceUrl"`
}

// ClientConfig tells the map front-end where to fetch its feed.
func (s *MapService) ClientConfig() ClientConfig {
	base := config.NormalizeBaseURL(s.cfg.APIBaseURL)
	return ClientConfig{APIBaseURL: base, DataSourceURL: base + "/api/v1/map/feed"}
}

func (s *MapService) current() (*mapdata.Dataset, error) {
	ds := s.store.Current()
	if ds == nil {
		return nil, mapdata.ErrNotLoaded
	}
	return ds, nil
}

// Feed composes the GeoJSON body for a filter. Bodies are cached per
// dataset version; a newer request on the same session supersedes this
// one with composer.ErrSuperseded.
func (s *MapService) Feed(ctx context.Context, session string, fs composer.FilterState) ([]byte, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	key := fs.CacheKey()

	body, hit, err := s.cache.Get(ctx, ds.Version, key)
	if err != nil {
		s.logr.Warn("feed cache read failed", zap.Error(err))
	}
	if hit {
		metrics.FeedCacheHitsTotal.Inc()
		return body, nil
	}
	metrics.FeedCacheMissesTotal.Inc()

	start := time.Now()
	level := string(fs.Level())
	res, err := s.runner.Run(ctx, session, func(ctx context.Context) (composer.Result, error) {
		return composer.Compose(ctx, ds, fs)
	})
	if err != nil {
		result := "cancelled"
		if errors.Is(err, composer.ErrSuperseded) {
			result = "superseded"
		}
		metrics.ComposeTotal.WithLabelValues(level, result).Inc()
		return nil, err
	}
	metrics.ComposeTotal.WithLabelValues(level, "ok").Inc()
	metrics.ComposeDurationMs.Observe(float64(time.Since(start).Milliseconds()))

	diags := res.Diagnostics
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	fc := composer.ToFeatureCollection(res)
	fc.ExtraMembers = geojson.Properties{
		"version":     ds.Version,
		"level":       string(res.Level),
		"count":       len(res.Features),
		"diagnostics": diags,
	}
	body, err = json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}

	if err := s.cache.Set(ctx, ds.Version, key, body); err != nil {
		s.logr.Warn("feed cache write failed", zap.Error(err))
	}
	return body, nil
}

type RegionView struct {
	*models.RegionNode
	Aggregate  models.Counts        `json:"aggregate"`
	Ancestors  []*models.RegionNode `json:"ancestors"`
	Children   int                  `json:"children"`
	HasFeature bool                 `json:"hasFeature"`
}

func regionView(ds *mapdata.Dataset, node *models.RegionNode, joined map[string]bool) RegionView {
	anc := ds.Tree.Ancestors(node)
	if anc == nil {
		anc = []*models.RegionNode{}
	}
	return RegionView{
		RegionNode: node,
		Aggregate:  ds.Tree.Aggregate(node),
		Ancestors:  anc,
		Children:   len(ds.Tree.ChildrenOf(node)),
		HasFeature: joined[node.ID],
	}
}

func joinedIDs(ds *mapdata.Dataset, level models.Level) map[string]bool {
	out := make(map[string]bool)
	for _, j := range ds.Regions[level] {
		out[j.Node.ID] = true
	}
	return out
}

// findRegion resolves a name at level. parent, when given, narrows
// same-named regions to those directly under it.
func findRegion(ds *mapdata.Dataset, level models.Level, name, parent string) (*models.RegionNode, error) {
	matches := ds.Tree.Matches(level, name)
	if parent != "" {
		parentLevel, _ := level.Parent()
		parentKey := ds.Tree.Key(parentLevel, parent)
		var narrowed []*models.RegionNode
		for _, m := range matches {
			if p := ds.Tree.Parent(m); p != nil && p.Key == parentKey {
				narrowed = append(narrowed, m)
			}
		}
		matches = narrowed
	}
	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return matches[0], nil
	}
	return nil, ErrAmbiguous
}

// Region looks one region up by name.
func (s *MapService) Region(ctx context.Context, level models.Level, name, parent string) (*RegionView, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	node, err := findRegion(ds, level, name, parent)
	if err != nil {
		return nil, err
	}
	v := regionView(ds, node, joinedIDs(ds, level))
	return &v, nil
}

// Children lists the regions directly under a named region. An empty name
// at province level lists the provinces.
func (s *MapService) Children(ctx context.Context, level models.Level, name, parent string) ([]RegionView, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}

	var node *models.RegionNode
	if !(level == models.LevelProvince && name == "") {
		if node, err = findRegion(ds, level, name, parent); err != nil {
			return nil, err
		}
	}

	kids := ds.Tree.ChildrenOf(node)
	out := make([]RegionView, 0, len(kids))
	if len(kids) == 0 {
		return out, nil
	}
	joined := joinedIDs(ds, kids[0].Level)
	for _, k := range kids {
		out = append(out, regionView(ds, k, joined))
	}
	return out, nil
}

type OrgView struct {
	*models.OrgUnit
	AggregateCustomers *int64 `json:"aggregateCustomers"`
	ULPs               int    `json:"ulps"`
	HasFeature         bool   `json:"hasFeature"`
}

// OrgUnits lists every UP3 or ULP with its aggregated customer count.
func (s *MapService) OrgUnits(ctx context.Context, level models.Level) ([]OrgView, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	joined := make(map[string]bool)
	for _, j := range ds.Orgs[level] {
		joined[j.Unit.ID] = true
	}

	units := ds.Tree.OrgUnits(level)
	out := make([]OrgView, 0, len(units))
	for _, u := range units {
		out = append(out, OrgView{
			OrgUnit:            u,
			AggregateCustomers: ds.Tree.AggregateOrg(u),
			ULPs:               len(ds.Tree.ULPsOf(u)),
			HasFeature:         joined[u.ID],
		})
	}
	return out, nil
}

type LevelStats struct {
	Level     models.Level `json:"level"`
	Joined    int          `json:"joined"`
	Unmatched []string     `json:"unmatched"`
	Skipped   int          `json:"skipped"`
}

type DiagnosticsView struct {
	Version     string              `json:"version"`
	LoadedAt    time.Time           `json:"loadedAt"`
	Regions     int                 `json:"regions"`
	Levels      []LevelStats        `json:"levels"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// Diagnostics reports what the last load could not place.
func (s *MapService) Diagnostics(ctx context.Context) (*DiagnosticsView, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	v := &DiagnosticsView{
		Version:     ds.Version,
		LoadedAt:    ds.LoadedAt,
		Regions:     ds.Tree.Len(),
		Levels:      []LevelStats{},
		Diagnostics: ds.Diagnostics,
	}
	if v.Diagnostics == nil {
		v.Diagnostics = []models.Diagnostic{}
	}
	for _, l := range ds.Levels() {
		st := LevelStats{Level: l, Skipped: ds.Skipped[l], Unmatched: []string{}}
		if l.IsOrg() {
			st.Joined = len(ds.Orgs[l])
		} else {
			st.Joined = len(ds.Regions[l])
		}
		for _, f := range ds.Unmatched[l] {
			st.Unmatched = append(st.Unmatched, f.Name)
		}
		v.Levels = append(v.Levels, st)
	}
	return v, nil
}

// Dusun returns the raw and cleaned dusun counts of the last load.
func (s *MapService) Dusun(ctx context.Context) (*hierarchy.DusunSummary, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	sum := ds.Tree.Dusun()
	return &sum, nil
}

type RefreshView struct {
	Version     string    `json:"version"`
	LoadedAt    time.Time `json:"loadedAt"`
	Regions     int       `json:"regions"`
	Diagnostics int       `json:"diagnostics"`
}

// Refresh reloads the dataset now.
func (s *MapService) Refresh(ctx context.Context) (*RefreshView, error) {
	ds, err := s.store.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return &RefreshView{
		Version:     ds.Version,
		LoadedAt:    ds.LoadedAt,
		Regions:     ds.Tree.Len(),
		Diagnostics: len(ds.Diagnostics),
	}, nil
}
