package manager

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cuemby/catalogd/pkg/catalog"
	"github.com/cuemby/catalogd/pkg/storage"
	"github.com/cuemby/catalogd/pkg/types"
	"github.com/hashicorp/raft"
)

// CatalogFSM implements the Raft finite state machine for the catalog's
// replicated log: every committed Command is replayed into the catalog
// Service's Entity Registry and Persistent Metadata Store via Dispatch.
type CatalogFSM struct {
	svc   *catalog.Service
	store storage.Store
}

// NewCatalogFSM creates a new FSM instance bound to svc and store.
func NewCatalogFSM(svc *catalog.Service, store storage.Store) *CatalogFSM {
	return &CatalogFSM{svc: svc, store: store}
}

// Command is one entry in the replicated log: an opaque op name plus its
// JSON-encoded payload, built by a catalog.Service CO handler running on
// the leader.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// Apply decodes and replays one committed Command. Called by raft for
// every log entry once it is committed to a quorum.
func (f *CatalogFSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("fsm: failed to unmarshal command: %w", err)
	}
	return f.svc.Dispatch(cmd.Op, cmd.Data)
}

// Snapshot captures every persisted kind for raft's log-compaction
// snapshotting: Tables, Tablets, Namespaces, UDTypes, Roles, then
// ClusterConfig.
func (f *CatalogFSM) Snapshot() (raft.FSMSnapshot, error) {
	snap := &CatalogSnapshot{}

	if err := f.store.VisitTables(func(t *types.Table) error {
		snap.Tables = append(snap.Tables, t)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fsm: snapshot tables: %w", err)
	}
	if err := f.store.VisitTablets(func(t *types.Tablet) error {
		snap.Tablets = append(snap.Tablets, t)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fsm: snapshot tablets: %w", err)
	}
	if err := f.store.VisitNamespaces(func(n *types.Namespace) error {
		snap.Namespaces = append(snap.Namespaces, n)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fsm: snapshot namespaces: %w", err)
	}
	if err := f.store.VisitUDTypes(func(u *types.UDType) error {
		snap.UDTypes = append(snap.UDTypes, u)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fsm: snapshot udtypes: %w", err)
	}
	if err := f.store.VisitRoles(func(r *types.Role) error {
		snap.Roles = append(snap.Roles, r)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fsm: snapshot roles: %w", err)
	}
	if err := f.store.VisitClusterConfig(func(c *types.ClusterConfig) error {
		snap.ClusterConfig = c
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fsm: snapshot cluster config: %w", err)
	}

	return snap, nil
}

// Restore replaces the Store's contents with a snapshot's, for a node
// catching up from a follower's install-snapshot RPC.
func (f *CatalogFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap CatalogSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("fsm: failed to decode snapshot: %w", err)
	}

	for _, ns := range snap.Namespaces {
		if err := f.store.AddNamespace(ns); err != nil {
			return fmt.Errorf("fsm: restore namespace: %w", err)
		}
	}
	if err := f.store.AddTables(snap.Tables); err != nil {
		return fmt.Errorf("fsm: restore tables: %w", err)
	}
	if err := f.store.AddTablets(snap.Tablets); err != nil {
		return fmt.Errorf("fsm: restore tablets: %w", err)
	}
	for _, u := range snap.UDTypes {
		if err := f.store.AddUDType(u); err != nil {
			return fmt.Errorf("fsm: restore udtype: %w", err)
		}
	}
	for _, r := range snap.Roles {
		if err := f.store.AddRole(r); err != nil {
			return fmt.Errorf("fsm: restore role: %w", err)
		}
	}
	if snap.ClusterConfig != nil {
		if err := f.store.PutClusterConfig(snap.ClusterConfig); err != nil {
			return fmt.Errorf("fsm: restore cluster config: %w", err)
		}
	}

	return nil
}

// CatalogSnapshot is a point-in-time copy of every persisted kind.
type CatalogSnapshot struct {
	Namespaces    []*types.Namespace
	Tables        []*types.Table
	Tablets       []*types.Tablet
	UDTypes       []*types.UDType
	Roles         []*types.Role
	ClusterConfig *types.ClusterConfig
}

// Persist writes the snapshot to sink as JSON.
func (s *CatalogSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release releases the snapshot's resources. There are none to release.
func (s *CatalogSnapshot) Release() {}
