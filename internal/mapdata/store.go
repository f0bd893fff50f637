package mapdata

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"sipeta-bknd/internal/geofeed"
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/metrics"
	"sipeta-bknd/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNotLoaded is returned by readers before the first successful refresh.
var ErrNotLoaded = errors.New("dataset not loaded")

// RefreshTimeout bounds one shared reload.
const RefreshTimeout = 5 * time.Minute

type HierarchyLoader interface {
	Load(ctx context.Context) (*hierarchy.Tree, []models.Diagnostic, error)
}

type FeedLoader interface {
	LoadLevel(ctx context.Context, level models.Level, sourcePath string) (*geofeed.LevelResult, error)
}

// Store owns the current Dataset.
type Store struct {
	hierarchy HierarchyLoader
	feeds     FeedLoader
	sources   map[models.Level]string
	logr      *logger.Logger

	current atomic.Pointer[Dataset]
	group   singleflight.Group
}

func NewStore(h HierarchyLoader, feeds FeedLoader, sources map[models.Level]string, logr *logger.Logger) *Store {
	return &Store{hierarchy: h, feeds: feeds, sources: sources, logr: logr}
}

// Current returns the latest dataset, or nil before the first load.
func (s *Store) Current() *Dataset {
	return s.current.Load()
}

// Refresh reloads the hierarchy and all boundary levels in parallel and
// swaps them in as one dataset. On any error the previous dataset stays.
// Concurrent callers share a single reload, which runs detached from any
// one caller's cancellation: a caller that gives up gets ctx.Err() while
// the reload carries on for the others.
func (s *Store) Refresh(ctx context.Context) (*Dataset, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return s.refresh(rctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			s.logr.Debug("refresh shared with in-flight call")
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Dataset), nil
	}
}

func (s *Store) refresh(ctx context.Context) (*Dataset, error) {
	start := time.Now()

	levels := make([]models.Level, 0, len(s.sources))
	for l := range s.sources {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	var (
		tree      *hierarchy.Tree
		treeDiags []models.Diagnostic
		results   = make([]*geofeed.LevelResult, len(levels))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tree, treeDiags, err = s.hierarchy.Load(gctx)
		return err
	})
	for i, level := range levels {
		i, level := i, level
		g.Go(func() error {
			res, err := s.feeds.LoadLevel(gctx, level, s.sources[level])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		s.logr.Error("refresh failed, keeping previous dataset", zap.Error(err))
		return nil, err
	}

	ds := Assemble(tree, treeDiags, results)
	s.current.Store(ds)

	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.RefreshDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	metrics.RegionNodes.Set(float64(tree.Len()))
	for _, l := range levels {
		joined := len(ds.Regions[l])
		if l.IsOrg() {
			joined = len(ds.Orgs[l])
		}
		metrics.JoinedFeatures.WithLabelValues(string(l)).Set(float64(joined))
		metrics.UnmatchedFeatures.WithLabelValues(string(l)).Set(float64(len(ds.Unmatched[l])))
		metrics.MalformedFeatures.WithLabelValues(string(l)).Set(float64(ds.Skipped[l]))
	}

	s.logr.Info("dataset refreshed",
		zap.String("version", ds.Version),
		zap.Int("levels", len(levels)),
		zap.Int("diagnostics", len(ds.Diagnostics)),
		zap.Duration("took", time.Since(start)))
	return ds, nil
}
