package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/geodash/pkg/telemetry"
)

// Routes exposes the registry for operators:
//
//	GET    /sessions       overview of every session
//	GET    /sessions/{id}  one session
//	DELETE /sessions/{id}  clean up one session
//	GET    /metrics        prometheus metrics
//	GET    /events         websocket stream of telemetry events
func Routes(reg *Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/events", telemetry.StreamHandler(reg.hub, reg.log.Logger))
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(w, http.StatusOK, reg.Overview())
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			info, ok := reg.Info(chi.URLParam(req, "id"))
			if !ok {
				respondError(w, http.StatusNotFound, "session not found")
				return
			}
			respondJSON(w, http.StatusOK, info)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			if !reg.Cleanup(chi.URLParam(req, "id")) {
				respondError(w, http.StatusNotFound, "session not found")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, struct {
		Error     string `json:"error"`
		Status    int    `json:"status"`
		Timestamp string `json:"timestamp"`
	}{
		Error:     message,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
