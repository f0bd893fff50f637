package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sipeta-bknd/internal/composer"
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/mapdata"
	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/services"
	"sipeta-bknd/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MapService is what the map endpoints need from the service layer.
type MapService interface {
	ClientConfig() services.ClientConfig
	Feed(ctx context.Context, session string, fs composer.FilterState) ([]byte, error)
	Region(ctx context.Context, level models.Level, name, parent string) (*services.RegionView, error)
	Children(ctx context.Context, level models.Level, name, parent string) ([]services.RegionView, error)
	OrgUnits(ctx context.Context, level models.Level) ([]services.OrgView, error)
	Diagnostics(ctx context.Context) (*services.DiagnosticsView, error)
	Dusun(ctx context.Context) (*hierarchy.DusunSummary, error)
	Refresh(ctx context.Context) (*services.RefreshView, error)
}

type MapHandler struct {
	service MapService
	logr    *zap.Logger
}

func NewMapHandler(svc MapService, logr *zap.Logger) *MapHandler {
	return &MapHandler{service: svc, logr: logr}
}

// sessionHeader lets a browser tab tag its requests so that only its
// newest feed request is answered.
const sessionHeader = "X-Map-Session"

// GetConfig handles GET /api/v1/config
func (h *MapHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ClientConfig())
}

// GetFeed handles GET /api/v1/map/feed
// Status flags default to true when absent so a bare request returns
// everything at the default marker level.
func (h *MapHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fs := composer.FilterState{
		Stable:         utils.ParseQueryBool(q, "stable", true),
		Warning:        utils.ParseQueryBool(q, "warning", true),
		Locations:      utils.ParseQueryList(q, "locations"),
		MarkerLevel:    models.Level(strings.TrimSpace(q.Get("markerLevel"))),
		ShowMarkers:    utils.ParseQueryBool(q, "showMarkers", false),
		DisableWarning: utils.ParseQueryBool(q, "disableWarning", false),
	}
	h.feed(w, r, fs, session(r))
}

// PostFeed handles POST /api/v1/map/feed with the renderer's filter JSON.
// Omitted status flags default to true, as on GET.
func (h *MapHandler) PostFeed(w http.ResponseWriter, r *http.Request) {
	fs := composer.FilterState{Stable: true, Warning: true}
	if err := json.NewDecoder(r.Body).Decode(&fs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter payload")
		return
	}
	h.feed(w, r, fs, session(r))
}

func session(r *http.Request) string {
	if s := r.URL.Query().Get("session"); s != "" {
		return s
	}
	return r.Header.Get(sessionHeader)
}

func (h *MapHandler) feed(w http.ResponseWriter, r *http.Request, fs composer.FilterState, session string) {
	body, err := h.service.Feed(r.Context(), session, fs)
	if err != nil {
		h.fail(w, err, "failed to compose map feed")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func adminLevel(w http.ResponseWriter, r *http.Request) (models.Level, bool) {
	level, ok := models.ParseLevel(chi.URLParam(r, "level"))
	if !ok || level.IsOrg() {
		writeError(w, http.StatusBadRequest, "invalid level, expected province, kabupaten, kecamatan, desa or dusun")
		return "", false
	}
	return level, true
}

// GetRegion handles GET /api/v1/map/regions/{level}?name=&parent=
func (h *MapHandler) GetRegion(w http.ResponseWriter, r *http.Request) {
	level, ok := adminLevel(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	region, err := h.service.Region(r.Context(), level, name, q.Get("parent"))
	if err != nil {
		h.fail(w, err, "failed to look up region")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    region,
	})
}

// GetChildren handles GET /api/v1/map/regions/{level}/children?name=&parent=
func (h *MapHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	level, ok := adminLevel(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	if name == "" && level != models.LevelProvince {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	children, err := h.service.Children(r.Context(), level, name, q.Get("parent"))
	if err != nil {
		h.fail(w, err, "failed to list children")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    children,
		"total":   len(children),
	})
}

// GetAggregate handles GET /api/v1/map/regions/{level}/aggregate?name=&parent=
func (h *MapHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	level, ok := adminLevel(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	region, err := h.service.Region(r.Context(), level, name, q.Get("parent"))
	if err != nil {
		h.fail(w, err, "failed to aggregate region")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"id":            region.ID,
			"level":         region.Level,
			"name":          region.Name,
			"population":    region.Aggregate.Population,
			"customerCount": region.Aggregate.CustomerCount,
		},
	})
}

// GetOrgUnits handles GET /api/v1/map/org/{level}
func (h *MapHandler) GetOrgUnits(w http.ResponseWriter, r *http.Request) {
	level, ok := models.ParseLevel(chi.URLParam(r, "level"))
	if !ok || !level.IsOrg() {
		writeError(w, http.StatusBadRequest, "invalid level, expected up3 or ulp")
		return
	}

	units, err := h.service.OrgUnits(r.Context(), level)
	if err != nil {
		h.fail(w, err, "failed to list org units")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    units,
		"total":   len(units),
	})
}

// GetDiagnostics handles GET /api/v1/map/diagnostics
func (h *MapHandler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Diagnostics(r.Context())
	if err != nil {
		h.fail(w, err, "failed to read diagnostics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    d,
	})
}

// GetDusun handles GET /api/v1/map/dusun
func (h *MapHandler) GetDusun(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dusun(r.Context())
	if err != nil {
		h.fail(w, err, "failed to read dusun statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    d,
	})
}

// Refresh handles POST /api/v1/map/refresh
func (h *MapHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Refresh(r.Context())
	if err != nil {
		h.logr.Error("manual refresh failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "refresh failed, previous dataset kept")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    res,
	})
}

// fail maps service errors onto status codes. Anything unexpected is
// logged and answered with msg.
func (h *MapHandler) fail(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, mapdata.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, "map data not loaded yet")
	case errors.Is(err, composer.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded by a newer request")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logr.Debug("request cancelled", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "region not found")
	case errors.Is(err, services.ErrAmbiguous):
		writeError(w, http.StatusConflict, "name matches several regions, pass parent to choose")
	default:
		h.logr.Error(msg, zap.Error(err))
		writeError(w, http.StatusInternalServerError, msg)
	}
}
