package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cuemby/catalogd/pkg/catalog"
	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/cuemby/catalogd/pkg/types"
)

// --- Namespaces ---

type createNamespaceRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateNamespace(w http.ResponseWriter, r *http.Request) {
	var req createNamespaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ns, err := s.svc.CreateNamespace(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ns)
}

func (s *Server) handleDeleteNamespace(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteNamespace(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces, err := s.svc.ListNamespaces(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, namespaces)
}

// --- UDTypes ---

type createUDTypeRequest struct {
	Name       string   `json:"name"`
	FieldNames []string `json:"field_names"`
	FieldTypes []string `json:"field_types"`
}

func (s *Server) handleCreateUDType(w http.ResponseWriter, r *http.Request) {
	var req createUDTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.svc.CreateUDType(r.PathValue("namespaceID"), req.Name, req.FieldNames, req.FieldTypes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetUDType(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.GetUDType(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUDType(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteUDType(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUDTypes(w http.ResponseWriter, r *http.Request) {
	udts, err := s.svc.ListUDTypes(r.PathValue("namespaceID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, udts)
}

// --- Tables ---

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	table, err := s.svc.CreateTable(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.loop != nil {
		s.loop.Kick()
	}
	writeJSON(w, http.StatusCreated, table)
}

func (s *Server) handleAlterTable(w http.ResponseWriter, r *http.Request) {
	var steps []catalog.AlterStep
	if !decodeJSON(w, r, &steps) {
		return
	}
	table, err := s.svc.AlterTable(r.PathValue("id"), steps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTable(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	if s.loop != nil {
		s.loop.Kick()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.svc.ListTables(r.URL.Query().Get("namespace_id"), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

type tableSchemaResponse struct {
	Schema        types.Schema `json:"schema"`
	SchemaVersion uint32       `json:"schema_version"`
}

func (s *Server) handleGetTableSchema(w http.ResponseWriter, r *http.Request) {
	schema, version, err := s.svc.GetTableSchema(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tableSchemaResponse{Schema: *schema, SchemaVersion: version})
}

func (s *Server) handleGetTableLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxReturned, _ := strconv.Atoi(q.Get("max_returned"))
	tablets, err := s.svc.GetTableLocations(r.PathValue("id"), []byte(q.Get("start_key")), []byte(q.Get("end_key")), maxReturned)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tablets)
}

type doneResponse struct {
	Done bool `json:"done"`
}

func (s *Server) handleIsCreateTableDone(w http.ResponseWriter, r *http.Request) {
	done, err := s.svc.IsCreateTableDone(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doneResponse{Done: done})
}

func (s *Server) handleIsAlterTableDone(w http.ResponseWriter, r *http.Request) {
	done, err := s.svc.IsAlterTableDone(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doneResponse{Done: done})
}

func (s *Server) handleIsDeleteTableDone(w http.ResponseWriter, r *http.Request) {
	done, err := s.svc.IsDeleteTableDone(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doneResponse{Done: done})
}

// --- Cluster config ---

func (s *Server) handleGetClusterConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.GetClusterConfig()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type setClusterConfigRequest struct {
	ExpectedVersion uint32                 `json:"expected_version"`
	ClusterUUID     string                 `json:"cluster_uuid,omitempty"`
	ReplicationInfo *types.ReplicationInfo `json:"replication_info,omitempty"`
	ServerBlacklist *types.ServerBlacklist `json:"server_blacklist,omitempty"`
}

func (s *Server) handleSetClusterConfig(w http.ResponseWriter, r *http.Request) {
	var req setClusterConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cfg, err := s.svc.SetClusterConfig(req.ExpectedVersion, req.ClusterUUID, req.ReplicationInfo, req.ServerBlacklist)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleIsLoadBalanced(w http.ResponseWriter, r *http.Request) {
	balanced, err := s.svc.IsLoadBalanced()
	if err != nil {
		var cerr *catalogerr.Error
		if !errors.As(err, &cerr) || cerr.Kind != catalogerr.KindTryAgain {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, doneResponse{Done: balanced})
}

func (s *Server) handleGetLoadMovePercent(w http.ResponseWriter, r *http.Request) {
	percent, err := s.svc.GetLoadMovePercent()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"percent": percent})
}

// --- Tablet reports ---

func (s *Server) handleProcessTabletReport(w http.ResponseWriter, r *http.Request) {
	var report types.TabletReport
	if !decodeJSON(w, r, &report) {
		return
	}
	instructions, err := s.reconciler.HandleReport(report)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instructions)
}

// --- Tablet server fleet ---

func (s *Server) handleTSHeartbeat(w http.ResponseWriter, r *http.Request) {
	var desc types.TSDescriptor
	if !decodeJSON(w, r, &desc) {
		return
	}
	if s.fleet != nil {
		s.fleet.Heartbeat(desc)
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Cluster membership ---

type generateJoinTokenRequest struct {
	NodeID string `json:"node_id"`
}

func (s *Server) handleGenerateJoinToken(w http.ResponseWriter, r *http.Request) {
	var req generateJoinTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NodeID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "INVALID_ARGUMENT", Message: "node_id is required"})
		return
	}
	token, err := s.mgr.GenerateJoinToken(req.NodeID)
	if err != nil {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Code: "ILLEGAL_STATE", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

type joinRequest struct {
	NodeID  string `json:"node_id"`
	Address string `json:"address"`
	Token   string `json:"token"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.mgr.ValidateJoinToken(req.Token, req.NodeID); err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Code: "INVALID_ARGUMENT", Message: err.Error()})
		return
	}
	if err := s.mgr.AddVoter(req.NodeID, req.Address); err != nil {
		writeJSON(w, http.StatusConflict, ErrorResponse{Code: "ILLEGAL_STATE", Message: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
