package httpapi

import (
	"net/http"
	"time"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "plannersuite-api",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.probe != nil {
		if err := a.probe.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
