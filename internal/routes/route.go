package routes

import (
	"net/http"

	"sipeta-bknd/internal/auth"
	"sipeta-bknd/internal/config"
	"sipeta-bknd/internal/handlers"
	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/metrics"
	mdlwr "sipeta-bknd/internal/middleware"
	"sipeta-bknd/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// NewRouter wires the HTTP surface. db may be nil, in which case operator
// login and the manual refresh endpoint are not mounted.
func NewRouter(db *bun.DB, mapSvc *services.MapService, cfg *config.Config, logr *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Map-Session"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mapHandler := handlers.NewMapHandler(mapSvc, logr.Named("map").Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	var authMW *mdlwr.AuthMiddleware
	var authHandler *handlers.AuthHandler
	if db != nil {
		jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTIssuer)
		if err != nil {
			logr.Fatal("failed to init jwt manager", zap.Error(err))
		}
		authSvc := services.NewAuthService(db, jwtMgr, cfg, logr.Named("auth"))
		authMW = mdlwr.NewAuthMiddleware(jwtMgr, authSvc, logr.Named("auth"))
		authHandler = handlers.NewAuthHandler(authSvc, logr.Named("auth"), cfg)
	} else {
		logr.Warn("no database configured, operator auth and manual refresh disabled")
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", mapHandler.GetConfig)

		if authHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", authHandler.LoginLocal)
				r.Post("/ldap", authHandler.LoginLDAP)
				r.Post("/refresh", authHandler.Refresh)
				r.Post("/logout", authHandler.Logout)
			})
		}

		r.Route("/map", func(r chi.Router) {
			r.Get("/feed", mapHandler.GetFeed)
			r.Post("/feed", mapHandler.PostFeed)

			r.Route("/regions/{level}", func(r chi.Router) {
				r.Get("/", mapHandler.GetRegion)
				r.Get("/children", mapHandler.GetChildren)
				r.Get("/aggregate", mapHandler.GetAggregate)
			})
			r.Get("/org/{level}", mapHandler.GetOrgUnits)
			r.Get("/diagnostics", mapHandler.GetDiagnostics)
			r.Get("/dusun", mapHandler.GetDusun)

			if authMW != nil {
				r.Group(func(r chi.Router) {
					r.Use(authMW.JWTAuth)
					r.Use(authMW.RequireRole(auth.RoleAdmin))
					r.Post("/refresh", mapHandler.Refresh)
				})
			}
		})
	})

	return r
}
