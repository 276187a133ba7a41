package api

import (
	"net/http"
	"time"

	"github.com/cuemby/catalogd/pkg/assign"
	"github.com/cuemby/catalogd/pkg/catalog"
	"github.com/cuemby/catalogd/pkg/manager"
	"github.com/cuemby/catalogd/pkg/metrics"
	"github.com/cuemby/catalogd/pkg/reconcile"
	"github.com/cuemby/catalogd/pkg/tsfleet"
)

// Server is the catalog manager's HTTP+JSON API surface.
type Server struct {
	svc        *catalog.Service
	mgr        *manager.Manager
	reconciler *reconcile.Handler
	loop       *assign.Loop
	fleet      *tsfleet.Registry
	mux        *http.ServeMux
}

// NewServer constructs a Server bound to mgr's catalog Service. loop may
// be nil if the Background Loop is not running on this node. fleet
// receives tablet server heartbeats and feeds catalog.TSDescriptorsFunc.
func NewServer(mgr *manager.Manager, loop *assign.Loop, fleet *tsfleet.Registry) *Server {
	s := &Server{
		svc:        mgr.Service(),
		mgr:        mgr,
		reconciler: reconcile.NewHandler(mgr.Service()),
		loop:       loop,
		fleet:      fleet,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("POST /v1/namespaces", s.handleCreateNamespace)
	s.handle("DELETE /v1/namespaces/{id}", s.handleDeleteNamespace)
	s.handle("GET /v1/namespaces", s.handleListNamespaces)

	s.handle("POST /v1/namespaces/{namespaceID}/types", s.handleCreateUDType)
	s.handle("GET /v1/namespaces/{namespaceID}/types", s.handleListUDTypes)
	s.handle("GET /v1/types/{id}", s.handleGetUDType)
	s.handle("DELETE /v1/types/{id}", s.handleDeleteUDType)

	s.handle("POST /v1/tables", s.handleCreateTable)
	s.handle("POST /v1/tables/{id}/alter", s.handleAlterTable)
	s.handle("DELETE /v1/tables/{id}", s.handleDeleteTable)
	s.handle("GET /v1/tables", s.handleListTables)
	s.handle("GET /v1/tables/{id}/schema", s.handleGetTableSchema)
	s.handle("GET /v1/tables/{id}/locations", s.handleGetTableLocations)
	s.handle("GET /v1/tables/{id}/create-done", s.handleIsCreateTableDone)
	s.handle("GET /v1/tables/{id}/alter-done", s.handleIsAlterTableDone)
	s.handle("GET /v1/tables/{id}/delete-done", s.handleIsDeleteTableDone)

	s.handle("GET /v1/cluster-config", s.handleGetClusterConfig)
	s.handle("PUT /v1/cluster-config", s.handleSetClusterConfig)
	s.handle("GET /v1/cluster-config/load-balanced", s.handleIsLoadBalanced)
	s.handle("GET /v1/cluster-config/load-move-percent", s.handleGetLoadMovePercent)

	s.handle("POST /v1/tablet-reports", s.handleProcessTabletReport)
	s.handle("POST /v1/ts-heartbeats", s.handleTSHeartbeat)

	s.handle("POST /v1/join-tokens", s.handleGenerateJoinToken)
	s.handle("POST /v1/join", s.handleJoin)

	s.mux.Handle("/metrics", metrics.Handler())
}

// handle wraps h with request metrics instrumentation and registers it
// at pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, instrument(pattern, h))
}

func instrument(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		metrics.APIRequestsTotal.WithLabelValues(method, http.StatusText(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ListenAndServe starts the HTTP server on addr, blocking until it
// returns an error.
func (s *Server) ListenAndServe(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// Handler returns the server's http.Handler, for embedding (or testing
// with httptest.NewServer) without binding a real listener.
func (s *Server) Handler() http.Handler { return s.mux }
