package server

import (
	"context"
	"net/http"
	"time"
)

// readyCheckTimeout bounds each dependency probe so a hung dependency
// cannot stall the readiness endpoint.
const readyCheckTimeout = 2 * time.Second

// ReadyCheck probes one dependency for /health/ready.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// handleHealth is the liveness probe: the process is up and serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady probes configured dependencies. Any failure flips the
// status to degraded with a 503 so load balancers drain the instance.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checks))
	healthy := true

	for _, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := check.Check(ctx)
		cancel()

		if err != nil {
			checks[check.Name] = err.Error()
			healthy = false
			continue
		}
		checks[check.Name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}
