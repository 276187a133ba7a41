package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/catalogd/pkg/types"
)

// Command ops. A Command is built and validated by a CO handler running
// on the leader, then submitted through the Applier (pkg/manager's raft
// wiring) for replication; Dispatch replays it deterministically on every
// node once the underlying raft log entry commits.
const (
	opCreateNamespace  = "create_namespace"
	opDeleteNamespace  = "delete_namespace"
	opCreateTable      = "create_table"
	opUpdateTable      = "update_table"
	opUpdateTablets    = "update_tablets"
	opCreateUDType     = "create_udtype"
	opDeleteUDType     = "delete_udtype"
	opCreateRole       = "create_role"
	opUpdateRole       = "update_role"
	opSetClusterConfig = "set_cluster_config"
)

type CreateNamespacePayload struct {
	Namespace *types.Namespace
}

type DeleteNamespacePayload struct {
	ID string
}

type CreateTablePayload struct {
	Table   *types.Table
	Tablets []*types.Tablet
}

type UpdateTablePayload struct {
	Table *types.Table
}

type UpdateTabletsPayload struct {
	Tablets []*types.Tablet
}

type CreateUDTypePayload struct {
	UDType *types.UDType
}

type DeleteUDTypePayload struct {
	ID string
}

type CreateRolePayload struct {
	Role *types.Role
}

type UpdateRolePayload struct {
	Role *types.Role
}

type SetClusterConfigPayload struct {
	Config *types.ClusterConfig
}

// Dispatch replays a replicated Command against this node's ER and
// Store. It is called by pkg/manager's FSM.Apply for every committed raft
// log entry; it performs no validation of its own beyond decoding, since
// validation already happened in the CO handler that produced the
// Command on the leader.
func (s *Service) Dispatch(op string, data json.RawMessage) error {
	switch op {
	case opCreateNamespace:
		var p CreateNamespacePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyCreateNamespace(&p)
	case opDeleteNamespace:
		var p DeleteNamespacePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyDeleteNamespace(&p)
	case opCreateTable:
		var p CreateTablePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyCreateTable(&p)
	case opUpdateTable:
		var p UpdateTablePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyUpdateTable(&p)
	case opUpdateTablets:
		var p UpdateTabletsPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyUpdateTablets(&p)
	case opCreateUDType:
		var p CreateUDTypePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyCreateUDType(&p)
	case opDeleteUDType:
		var p DeleteUDTypePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyDeleteUDType(&p)
	case opCreateRole:
		var p CreateRolePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyCreateRole(&p)
	case opUpdateRole:
		var p UpdateRolePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applyUpdateRole(&p)
	case opSetClusterConfig:
		var p SetClusterConfigPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return s.applySetClusterConfig(&p)
	default:
		return fmt.Errorf("catalog: unknown command %q", op)
	}
}
