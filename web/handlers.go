package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/msmafra/sogeBot/app"
)

// moduleStatus is one entry of the module listing.
type moduleStatus struct {
	ID                  string    `json:"id"`
	Area                string    `json:"area"`
	Name                string    `json:"name"`
	Enabled             bool      `json:"enabled"`
	StoredEnabled       bool      `json:"stored_enabled"`
	AlwaysOn            bool      `json:"always_on"`
	DisabledByEnv       bool      `json:"disabled_by_env"`
	DependenciesHealthy bool      `json:"dependencies_healthy"`
	LastHealthCheck     time.Time `json:"last_health_check"`
}

// ListModules returns every registered module with its effective status.
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	mods := h.registry.List()
	out := make([]moduleStatus, 0, len(mods))
	for _, m := range mods {
		out = append(out, moduleStatus{
			ID:                  m.ID(),
			Area:                m.Area(),
			Name:                m.Name(),
			Enabled:             m.Enabled(),
			StoredEnabled:       m.StoredEnabled(),
			AlwaysOn:            m.AlwaysOn(),
			DisabledByEnv:       m.DisabledByEnv(),
			DependenciesHealthy: m.DependenciesHealthy(),
			LastHealthCheck:     m.LastHealthCheck(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}

// ToggleModule stores a new enabled flag for one module.
func (h *Handler) ToggleModule(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be {\"enabled\": bool}")
		return
	}

	if err := m.SetEnabled(r.Context(), *body.Enabled); err != nil {
		if errors.Is(err, app.ErrAlwaysOn) {
			writeError(w, http.StatusConflict, "always_on", "module cannot be toggled")
			return
		}
		h.logger.Error().Err(err).Str("module", m.ID()).Msg("toggle failed")
		writeError(w, http.StatusInternalServerError, "internal", "toggle failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      m.ID(),
		"enabled": m.Enabled(),
	})
}

// GetSettings returns the module's effective settings tree and its UI
// descriptors. With ?raw=true tier-scoped keys surface sparse overrides
// with explicit nulls instead of waterfall-resolved values.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}

	fillDefaults := r.URL.Query().Get("raw") != "true"
	settings, ui, err := h.settings.Snapshot(r.Context(), m, fillDefaults)
	if err != nil {
		h.logger.Error().Err(err).Str("module", m.ID()).Msg("snapshot failed")
		writeError(w, http.StatusInternalServerError, "internal", "snapshot failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settings": settings,
		"ui":       ui,
	})
}

// UpdateSettings applies a partial settings update. The reply is null on
// full success, mirroring the historical protocol; callers wanting
// details read the error payload. The settle delay gives on-change hooks
// time to run before the caller re-reads.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be a JSON object")
		return
	}

	rep := h.settings.ApplyUpdate(r.Context(), m, payload)

	if delay := h.holder.Get().Modules.UpdateSettleDelay; delay > 0 {
		h.sleep(delay)
	}

	if rep.OK() {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      rep.ID,
		"applied": rep.Applied,
		"dropped": rep.Dropped,
		"errors":  rep.Errors,
	})
}

// GetValue reads one registered setting by dotted path.
func (h *Handler) GetValue(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}

	key := chi.URLParam(r, "key")
	v, ok := h.settings.Value(m, key)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown setting "+key)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
}

// SetValue writes one registered setting by dotted path.
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}

	var body struct {
		Value any `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be {\"value\": ...}")
		return
	}

	key := chi.URLParam(r, "key")
	if err := h.settings.SetValue(r.Context(), m, key, body.Value); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	v, _ := h.settings.Value(m, key)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
}
