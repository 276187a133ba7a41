// Package types defines the catalog's data model: namespaces, tables,
// tablets, user-defined types, roles, and the cluster-wide configuration.
// Every type here is the payload wrapped by a pkg/cowe.Entity and persisted
// through pkg/storage.
package types

import "time"

// Namespace is the parent container of Tables and UDTypes.
type Namespace struct {
	ID   string
	Name string
}

// TableState is the lifecycle state of a Table.
type TableState string

const (
	TableStatePreparing TableState = "PREPARING"
	TableStateRunning   TableState = "RUNNING"
	TableStateAltering  TableState = "ALTERING"
	TableStateDeleting  TableState = "DELETING"
	TableStateDeleted   TableState = "DELETED"
)

// TableType distinguishes the partitioning family applied at creation.
type TableType string

const (
	TableTypeHash     TableType = "hash-table"
	TableTypeRange    TableType = "range-table"
	TableTypeKeyValue TableType = "key-value-table"
)

// PartitionSchemaKind is the partitioning strategy of a Table.
type PartitionSchemaKind string

const (
	PartitionMultiColumnHash PartitionSchemaKind = "multi-column-hash"
	PartitionFixedSlotHash   PartitionSchemaKind = "fixed-slot-hash"
	PartitionRangeOnKey      PartitionSchemaKind = "range-on-key"
)

// Column is one field of a Table's schema.
type Column struct {
	ID       int32
	Name     string
	Type     string
	IsKey    bool
	IsHash   bool // subset of IsKey columns used for hash partitioning
	Nullable bool
	// ReadDefault is required for ADD_COLUMN on a non-nullable column; nil
	// means "no default supplied".
	ReadDefault []byte
}

// Schema is an ordered column list, key columns first.
type Schema struct {
	Columns []Column
}

// KeyColumns returns the schema's key columns in declared order.
func (s Schema) KeyColumns() []Column {
	var out []Column
	for _, c := range s.Columns {
		if c.IsKey {
			out = append(out, c)
		}
	}
	return out
}

// HashColumns returns the subset of key columns marked for hash partitioning.
func (s Schema) HashColumns() []Column {
	var out []Column
	for _, c := range s.Columns {
		if c.IsHash {
			out = append(out, c)
		}
	}
	return out
}

// PlacementBlock is a hard floor on replicas in one cloud/region/zone.
type PlacementBlock struct {
	Cloud          string
	Region         string
	Zone           string
	MinNumReplicas int
}

// ReplicationInfo is the desired placement for a Table (or, at the cluster
// level, the cluster-wide default).
type ReplicationInfo struct {
	NumReplicas     int
	PlacementBlocks []PlacementBlock
}

// PartitionSchema describes how a Table's key space is split into Tablets.
type PartitionSchema struct {
	Kind PartitionSchemaKind
	// HashBuckets is used by PartitionFixedSlotHash.
	HashBuckets int
	// HashColumnIDs names the columns hashed by PartitionMultiColumnHash.
	HashColumnIDs []int32
	// SplitRows are caller-supplied range split points for PartitionRangeOnKey.
	SplitRows [][]byte
}

// Table is the catalog's record of one relation.
type Table struct {
	ID                 string
	Name               string
	NamespaceID        string
	Schema             Schema
	SchemaVersion      uint32
	NextColumnID       int32
	PartitionSchema    PartitionSchema
	ReplicationInfo    ReplicationInfo
	TableType          TableType
	State              TableState
	FullyAppliedSchema *Schema
	CreateTime         time.Time
	UpdateTime         time.Time
}

// TabletState is the lifecycle state of a Tablet.
type TabletState string

const (
	TabletStatePreparing TabletState = "PREPARING"
	TabletStateCreating  TabletState = "CREATING"
	TabletStateRunning   TabletState = "RUNNING"
	TabletStateReplaced  TabletState = "REPLACED"
	TabletStateDeleted   TabletState = "DELETED"
)

// PartitionKeyRange is an inclusive-exclusive key range, or a hash-code
// range when HashRange is set.
type PartitionKeyRange struct {
	StartKey  []byte
	EndKey    []byte // empty means unbounded
	HashRange bool
	HashStart uint32
	HashEnd   uint32 // exclusive
}

// PeerRole is a replica's role in its Tablet's consensus group.
type PeerRole string

const (
	PeerRoleLeader   PeerRole = "LEADER"
	PeerRoleFollower PeerRole = "FOLLOWER"
	PeerRoleLearner  PeerRole = "LEARNER"
	PeerRoleNonVoter PeerRole = "NON_VOTER"
)

// ConsensusPeer is one member of a Tablet's replica group as recorded in the
// committed consensus configuration.
type ConsensusPeer struct {
	ServerID      string
	Role          PeerRole
	LastKnownAddr string
}

// ConsensusState is a Tablet's committed consensus configuration snapshot.
type ConsensusState struct {
	Term       uint64
	OpIDIndex  int64
	LeaderUUID string
	Peers      []ConsensusPeer
}

// ReplicaLocation is transient, in-memory knowledge of one live replica,
// rebuilt from heartbeats; it is never persisted to the PMS.
type ReplicaLocation struct {
	Role          PeerRole
	ServerID      string
	ReportedState TabletState
}

// Tablet is one shard of a Table.
type Tablet struct {
	ID                      string
	TableID                 string
	Partition               PartitionKeyRange
	State                   TabletState
	CommittedConsensusState ConsensusState
	LastUpdateTime          time.Time
	ReportedSchemaVersion   uint32
	// ReplicaLocations is transient in-memory state; never serialized to the PMS.
	ReplicaLocations map[string]ReplicaLocation `json:"-"`
}

// UDType is a user-defined composite type scoped to a Namespace.
type UDType struct {
	ID          string
	Name        string
	NamespaceID string
	FieldNames  []string
	FieldTypes  []string
}

// Role is a cluster principal.
type Role struct {
	Name               string
	CanLogin           bool
	IsSuperuser        bool
	SaltedPasswordHash string
	MemberOf           map[string]bool
}

// ServerBlacklist marks servers being drained and snapshots progress.
type ServerBlacklist struct {
	Servers            []string
	InitialReplicaLoad int
}

// ClusterConfig is the cluster-wide singleton configuration record.
type ClusterConfig struct {
	Version         uint32
	ClusterUUID     string
	ReplicationInfo ReplicationInfo
	ServerBlacklist ServerBlacklist
}
