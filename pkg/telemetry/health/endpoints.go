package health

import (
	"encoding/json"
	"net/http"
)

// Probe paths served next to the metrics handler.
const (
	LivenessPath  = "/healthz"
	ReadinessPath = "/readyz"
)

// LivenessHandler answers 200 while the process runs.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeStatus(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler runs the registered checks and answers 200 when all
// pass, 503 otherwise.
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "listeners": {"status": "ok"},
//	        "backend": {"status": "unhealthy", "message": "dial tcp 127.0.0.1:80: connect: connection refused"}
//	    },
//	    "timestamp": "2026-10-17T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if status.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, r, code, status)
	}
}

// Register adds the liveness and readiness handlers to mux.
func (c *Checker) Register(mux *http.ServeMux) {
	mux.HandleFunc(LivenessPath, c.LivenessHandler())
	mux.HandleFunc(ReadinessPath, c.ReadinessHandler())
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, status Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(status)
	}
}
