package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/catalogd/pkg/manager"
	"github.com/cuemby/catalogd/pkg/metrics"
)

// HealthServer provides the liveness and readiness HTTP endpoints,
// separate from the main API mux so they can be exposed on their own
// port regardless of admission state.
type HealthServer struct {
	manager *manager.Manager
	mux     *http.ServeMux
}

// NewHealthServer creates a new health check HTTP server bound to mgr.
func NewHealthServer(mgr *manager.Manager) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{manager: mgr, mux: mux}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server on addr.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the /ready response body.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler is a liveness check: 200 iff the process is alive.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// readyHandler reports whether this node is ready to admit catalog
// requests: raft is up, and this node either leads or knows who does.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.manager != nil {
		if hs.manager.IsLeader() {
			checks["raft"] = "leader"
			metrics.UpdateComponent("raft", true, "leader")
		} else if leaderAddr := hs.manager.LeaderAddr(); leaderAddr != "" {
			checks["raft"] = fmt.Sprintf("follower (leader: %s)", leaderAddr)
			metrics.UpdateComponent("raft", true, "follower")
		} else {
			checks["raft"] = "no leader elected"
			ready = false
			message = "waiting for leader election"
			metrics.UpdateComponent("raft", false, message)
		}
		checks["storage"] = "ok"
		metrics.UpdateComponent("storage", true, "ok")
	} else {
		checks["raft"] = "not initialized"
		checks["storage"] = "not initialized"
		ready = false
		message = "manager not initialized"
		metrics.UpdateComponent("raft", false, message)
		metrics.UpdateComponent("storage", false, message)
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	resp := ReadyResponse{Status: status, Timestamp: time.Now(), Checks: checks, Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetHandler returns the HTTP handler for embedding in other servers.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
