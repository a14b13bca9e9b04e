// Package web exposes the settings protocol over HTTP: module settings
// snapshots and updates, single-value access, module listing and
// toggling. Admin endpoints are guarded by a bearer token checked
// against a bcrypt hash from configuration.
package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/msmafra/sogeBot/adapters/metrics"
	"github.com/msmafra/sogeBot/app"
	"github.com/msmafra/sogeBot/config"
)

// Handler provides the settings API endpoints.
type Handler struct {
	registry  *app.Registry
	settings  *app.SettingsService
	collector *metrics.Collector
	holder    *config.Holder
	logger    zerolog.Logger
	startTime time.Time

	// sleep is replaceable in tests so the settle delay does not slow
	// them down.
	sleep func(time.Duration)
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Registry  *app.Registry
	Settings  *app.SettingsService
	Collector *metrics.Collector
	Config    *config.Holder
	Logger    zerolog.Logger
}

// NewHandler creates the settings API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		registry:  deps.Registry,
		settings:  deps.Settings,
		collector: deps.Collector,
		holder:    deps.Config,
		logger:    deps.Logger,
		startTime: time.Now(),
		sleep:     time.Sleep,
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.Healthz)

	cfg := h.holder.Get()
	if cfg.Metrics.Enabled && h.collector != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(
			h.collector.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/modules", h.ListModules)
		r.Post("/modules/{area}/{name}/toggle", h.ToggleModule)

		r.Get("/settings/{area}/{name}", h.GetSettings)
		r.Post("/settings/{area}/{name}", h.UpdateSettings)

		r.Get("/values/{area}/{name}/{key}", h.GetValue)
		r.Put("/values/{area}/{name}/{key}", h.SetValue)
	})

	return r
}

// AuthMiddleware validates the admin bearer token against the
// configured bcrypt hash. An empty hash disables authentication, for
// local development only.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := h.holder.Get().Admin.TokenHash
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

func (h *Handler) module(w http.ResponseWriter, r *http.Request) (*app.Module, bool) {
	id := chi.URLParam(r, "area") + "/" + chi.URLParam(r, "name")
	m, ok := h.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown module "+id)
		return nil, false
	}
	return m, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
