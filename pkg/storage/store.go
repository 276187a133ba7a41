// Package storage implements the catalog manager's Persistent Metadata
// Store (PMS): an opaque BoltDB-backed CRUD layer, written underneath the
// replicated log so that every write returns only after the raft FSM
// applying it has been committed by the Manager layer above.
package storage

import "github.com/cuemby/catalogd/pkg/types"

// Visitor is called once per persisted record of one kind, in unspecified
// order, while replaying state from the PMS into the Entity Registry.
type Visitor[T any] func(item *T) error

// Store is the opaque interface a catalog entity kind is persisted
// through. Every write is expected to be issued from inside a raft FSM
// Apply call so that it is already past the replication quorum; Store
// itself does no locking beyond what BoltDB's own transactions provide.
type Store interface {
	AddNamespace(ns *types.Namespace) error
	UpdateNamespace(ns *types.Namespace) error
	DeleteNamespace(id string) error
	VisitNamespaces(v Visitor[types.Namespace]) error

	AddTable(t *types.Table) error
	AddTables(ts []*types.Table) error
	UpdateTable(t *types.Table) error
	UpdateTables(ts []*types.Table) error
	DeleteTable(id string) error
	VisitTables(v Visitor[types.Table]) error

	AddTablet(t *types.Tablet) error
	AddTablets(ts []*types.Tablet) error
	UpdateTablet(t *types.Tablet) error
	UpdateTablets(ts []*types.Tablet) error
	DeleteTablet(id string) error
	VisitTablets(v Visitor[types.Tablet]) error

	AddUDType(u *types.UDType) error
	UpdateUDType(u *types.UDType) error
	DeleteUDType(id string) error
	VisitUDTypes(v Visitor[types.UDType]) error

	AddRole(r *types.Role) error
	UpdateRole(r *types.Role) error
	DeleteRole(name string) error
	VisitRoles(v Visitor[types.Role]) error

	// PutClusterConfig persists the singleton cluster configuration record.
	PutClusterConfig(c *types.ClusterConfig) error
	// VisitClusterConfig calls v at most once, iff a ClusterConfig record
	// has ever been persisted.
	VisitClusterConfig(v Visitor[types.ClusterConfig]) error

	Close() error
}
