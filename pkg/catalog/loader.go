package catalog

import (
	"fmt"
	"time"

	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/cuemby/catalogd/pkg/cowe"
	"github.com/cuemby/catalogd/pkg/security"
	"github.com/cuemby/catalogd/pkg/types"
)

// defaultNamespaceNames are the bootstrap namespaces created if missing by
// the Loader.
var defaultNamespaceNames = []string{"default", "system", "system_schema", "system_auth"}

const defaultRoleName = "cassandra"
const defaultRolePassword = "cassandra" // bcrypt-hashed before first write

// defaultSystemTable names one read-only virtual table the Loader ensures
// exists in its owning namespace: a catalog-only view with no replicas of
// its own (peers query, keyspace listings, schema introspection, and so
// on), backed by a single Tablet that is RUNNING without ever having been
// assigned to a tablet server.
type defaultSystemTable struct {
	namespace string
	name      string
}

// defaultSystemTables mirrors the "system"/"system_schema"/"system_auth"
// virtual tables created once per cluster.
var defaultSystemTables = []defaultSystemTable{
	{namespace: "system", name: "local"},
	{namespace: "system", name: "peers"},
	{namespace: "system_schema", name: "keyspaces"},
	{namespace: "system_schema", name: "tables"},
	{namespace: "system_schema", name: "columns"},
	{namespace: "system_schema", name: "aggregates"},
	{namespace: "system_schema", name: "functions"},
	{namespace: "system_schema", name: "indexes"},
	{namespace: "system_schema", name: "triggers"},
	{namespace: "system_schema", name: "views"},
	{namespace: "system_schema", name: "types"},
	{namespace: "system_schema", name: "partitions"},
	{namespace: "system_auth", name: "roles"},
}

// load replays every persisted kind from the PMS into the ER, in the
// order: Tables, Tablets, Namespaces, UDTs,
// ClusterConfig, Roles. References are tolerated forward and backward;
// only an orphaned non-PREPARING Tablet is fatal.
func (s *Service) load() error {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	if err := s.store.VisitTables(func(t *types.Table) error {
		s.reg.tablesByID[t.ID] = cowe.New(*t)
		if t.State != types.TableStateDeleted && t.Name != "" {
			s.reg.tablesByNamespace[tableKey(t.NamespaceID, t.Name)] = s.reg.tablesByID[t.ID]
		}
		return nil
	}); err != nil {
		return fmt.Errorf("visiting tables: %w", err)
	}

	if err := s.store.VisitTablets(func(t *types.Tablet) error {
		if _, ok := s.reg.tablesByID[t.TableID]; !ok && t.State != types.TabletStatePreparing {
			return catalogerr.New(catalogerr.KindCorruption, "tablet %s references missing table %s in state %s", t.ID, t.TableID, t.State)
		}
		t.ReplicaLocations = nil
		s.reg.tabletsByID[t.ID] = cowe.New(*t)
		s.reg.tabletIDsByTable[t.TableID] = append(s.reg.tabletIDsByTable[t.TableID], t.ID)
		return nil
	}); err != nil {
		return fmt.Errorf("visiting tablets: %w", err)
	}

	if err := s.store.VisitNamespaces(func(n *types.Namespace) error {
		s.reg.namespacesByID[n.ID] = cowe.New(*n)
		if n.Name != "" {
			s.reg.namespacesByName[n.Name] = s.reg.namespacesByID[n.ID]
		}
		return nil
	}); err != nil {
		return fmt.Errorf("visiting namespaces: %w", err)
	}

	if err := s.store.VisitUDTypes(func(u *types.UDType) error {
		s.reg.udtsByID[u.ID] = cowe.New(*u)
		if u.Name != "" {
			s.reg.udtsByNamespace[udtKey(u.NamespaceID, u.Name)] = s.reg.udtsByID[u.ID]
		}
		return nil
	}); err != nil {
		return fmt.Errorf("visiting udts: %w", err)
	}

	if err := s.store.VisitClusterConfig(func(c *types.ClusterConfig) error {
		s.reg.clusterConfig = cowe.New(*c)
		return nil
	}); err != nil {
		return fmt.Errorf("visiting cluster config: %w", err)
	}

	if err := s.store.VisitRoles(func(r *types.Role) error {
		s.reg.rolesByName[r.Name] = cowe.New(*r)
		return nil
	}); err != nil {
		return fmt.Errorf("visiting roles: %w", err)
	}

	return nil
}

// ensureBootstrapDefaults creates, under the Applier (so the creation is
// itself replicated), any of the four default namespaces, the default
// role, and the empty v0 ClusterConfig that are missing.
func (s *Service) ensureBootstrapDefaults() error {
	s.reg.mu.RLock()
	var missingNamespaces []string
	for _, name := range defaultNamespaceNames {
		if _, ok := s.reg.namespacesByName[name]; !ok {
			missingNamespaces = append(missingNamespaces, name)
		}
	}
	_, hasRole := s.reg.rolesByName[defaultRoleName]
	hasClusterConfig := s.reg.clusterConfig != nil
	s.reg.mu.RUnlock()

	for _, name := range missingNamespaces {
		ns := &types.Namespace{ID: newID(s.namespaceIDTaken), Name: name}
		if err := s.apply(opCreateNamespace, &CreateNamespacePayload{Namespace: ns}); err != nil {
			return fmt.Errorf("creating default namespace %q: %w", name, err)
		}
	}

	if !hasRole {
		hash, err := security.HashPassword(defaultRolePassword)
		if err != nil {
			return fmt.Errorf("hashing default role password: %w", err)
		}
		role := &types.Role{Name: defaultRoleName, CanLogin: true, IsSuperuser: true, SaltedPasswordHash: hash, MemberOf: map[string]bool{}}
		if err := s.apply(opCreateRole, &CreateRolePayload{Role: role}); err != nil {
			return fmt.Errorf("creating default role: %w", err)
		}
	}

	if !hasClusterConfig {
		cfg := &types.ClusterConfig{Version: 0, ClusterUUID: s.cfg.ClusterUUID}
		if err := s.apply(opSetClusterConfig, &SetClusterConfigPayload{Config: cfg}); err != nil {
			return fmt.Errorf("creating default cluster config: %w", err)
		}
	}

	if err := s.ensureDefaultSystemTables(); err != nil {
		return fmt.Errorf("creating default system tables: %w", err)
	}

	return nil
}

// ensureDefaultSystemTables creates, under the Applier, any missing
// virtual system table: a RUNNING Table backed by one RUNNING Tablet that
// was never handed to a tablet server, since its rows are served directly
// by the catalog rather than by a replicated tablet.
func (s *Service) ensureDefaultSystemTables() error {
	for _, st := range defaultSystemTables {
		s.reg.mu.RLock()
		nsEntity, hasNS := s.reg.namespacesByName[st.namespace]
		s.reg.mu.RUnlock()

		if !hasNS {
			return fmt.Errorf("default namespace %q missing for system table %q", st.namespace, st.name)
		}
		rg := nsEntity.LockForRead()
		nsID := rg.Value().ID
		rg.Release()

		s.reg.mu.RLock()
		_, already := s.reg.tablesByNamespace[tableKey(nsID, st.name)]
		s.reg.mu.RUnlock()
		if already {
			continue
		}

		table, tablet := buildSystemTable(nsID, st.name, s.tableIDTaken, s.tabletIDTaken)
		if err := s.apply(opCreateTable, &CreateTablePayload{Table: table, Tablets: []*types.Tablet{tablet}}); err != nil {
			return fmt.Errorf("creating system table %s.%s: %w", st.namespace, st.name, err)
		}
	}
	return nil
}

// buildSystemTable constructs a read-only virtual table and its sole,
// already-RUNNING tablet. It has no placement-block-aware replica set:
// the data lives in the catalog itself, not on any tablet server.
func buildSystemTable(namespaceID, name string, tableIDTaken, tabletIDTaken func(string) bool) (*types.Table, *types.Tablet) {
	now := time.Now()
	table := &types.Table{
		ID:          newID(tableIDTaken),
		Name:        name,
		NamespaceID: namespaceID,
		Schema: types.Schema{Columns: []types.Column{
			{ID: 1, Name: "key", Type: "text", IsKey: true, IsHash: true},
		}},
		SchemaVersion:   1,
		NextColumnID:    2,
		PartitionSchema: types.PartitionSchema{Kind: types.PartitionMultiColumnHash, HashBuckets: 1, HashColumnIDs: []int32{1}},
		ReplicationInfo: types.ReplicationInfo{NumReplicas: 1},
		TableType:       types.TableTypeHash,
		State:           types.TableStateRunning,
		CreateTime:      now,
		UpdateTime:      now,
	}
	tablet := &types.Tablet{
		ID:             newID(tabletIDTaken),
		TableID:        table.ID,
		Partition:      types.PartitionKeyRange{HashRange: true, HashStart: 0, HashEnd: ^uint32(0)},
		State:          types.TabletStateRunning,
		LastUpdateTime: now,
	}
	return table, tablet
}

func (s *Service) namespaceIDTaken(id string) bool {
	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	_, ok := s.reg.namespacesByID[id]
	return ok
}
