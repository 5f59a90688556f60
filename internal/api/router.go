package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/devices", s.handleListDevices)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// HealthResponse is the aggregate health document.
type HealthResponse struct {
	Status string `json:"status"`

	// Checks maps dependency names to "ok" or an error string.
	Checks map[string]string `json:"checks"`

	// Sessions lists device addresses this instance currently drives.
	Sessions []string `json:"sessions"`

	Version string `json:"version"`
}

// handleHealth probes every registered dependency and reports aggregate
// status. The handler returns 503 when any probe fails so orchestrators
// can restart an instance with a dead broker or database connection.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Checks:   make(map[string]string, len(s.checks)),
		Sessions: s.sessions.ConnectedDevices(),
		Version:  s.version,
	}

	status := http.StatusOK
	for name, checker := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// DeviceSummary is one row of the read-only device listing.
type DeviceSummary struct {
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	Connected bool      `json:"connected"`
	PairedAt  time.Time `json:"paired_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// handleListDevices returns every paired device and whether this
// instance currently holds its session. Devices owned by peers appear
// with connected=false.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeNotFound(w, "device registry not configured")
		return
	}

	paired, err := s.store.ListPairedDevices(r.Context())
	if err != nil {
		s.logger.Error("failed to list paired devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	connected := make(map[string]bool)
	for _, addr := range s.sessions.ConnectedDevices() {
		connected[addr] = true
	}

	out := make([]DeviceSummary, 0, len(paired))
	for _, dev := range paired {
		out = append(out, DeviceSummary{
			Address:   dev.Address,
			Name:      dev.Name,
			Connected: connected[dev.Address],
			PairedAt:  dev.PairedAt,
			LastSeen:  dev.LastSeen,
		})
	}

	writeJSON(w, http.StatusOK, out)
}
