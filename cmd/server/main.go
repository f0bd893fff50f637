package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sipeta-bknd/internal/app"
	"sipeta-bknd/internal/cache"
	"sipeta-bknd/internal/config"
	"sipeta-bknd/internal/database"
	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/mapdata"
	"sipeta-bknd/internal/routes"
	"sipeta-bknd/internal/services"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	deps, err := app.Open(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open data sources", zap.Error(err))
	}
	defer deps.Close(context.Background())

	if deps.DB != nil {
		if err := database.EnsureSchema(ctx, deps.DB); err != nil {
			logr.Fatal("failed to prepare operator tables", zap.Error(err))
		}
	}

	feedCache := cache.NewFeedCache(cache.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.FeedCacheTTL)
	defer feedCache.Close()
	if err := feedCache.Ping(ctx); err != nil {
		logr.Warn("feed cache unreachable, continuing without it", zap.Error(err))
		feedCache = nil
	}

	store := deps.Store()
	// The server starts even when the first load fails; the feed answers
	// 503 until a refresh succeeds.
	if _, err := store.Refresh(ctx); err != nil {
		logr.Error("initial dataset load failed", zap.Error(err))
	}
	if cfg.RefreshInterval > 0 {
		go refreshLoop(ctx, store, cfg.RefreshInterval, logr)
	}

	mapSvc := services.NewMapService(store, feedCache, cfg, logr.Named("map"))
	r := routes.NewRouter(deps.DB, mapSvc, cfg, logr)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started", zap.String("port", cfg.Port), zap.String("hierarchy", cfg.HierarchySource))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	logr.Info("server exited gracefully")
}

func refreshLoop(ctx context.Context, store *mapdata.Store, every time.Duration, logr *logger.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := store.Refresh(ctx); err != nil {
				logr.Warn("scheduled refresh failed", zap.Error(err))
			}
		}
	}
}
