package catalog

import (
	"encoding/json"
	"sync"

	"github.com/cuemby/catalogd/pkg/config"
	"github.com/cuemby/catalogd/pkg/storage"
	"github.com/cuemby/catalogd/pkg/types"
)

// memStore is a bare in-memory storage.Store, standing in for
// storage.BoltStore in unit tests so the catalog package can be exercised
// without touching disk.
type memStore struct {
	mu sync.Mutex

	namespaces map[string]*types.Namespace
	tables     map[string]*types.Table
	tablets    map[string]*types.Tablet
	udtypes    map[string]*types.UDType
	roles      map[string]*types.Role
	clusterCfg *types.ClusterConfig
}

func newMemStore() *memStore {
	return &memStore{
		namespaces: make(map[string]*types.Namespace),
		tables:     make(map[string]*types.Table),
		tablets:    make(map[string]*types.Tablet),
		udtypes:    make(map[string]*types.UDType),
		roles:      make(map[string]*types.Role),
	}
}

func clone[T any](v *T) *T {
	data, _ := json.Marshal(v)
	out := new(T)
	_ = json.Unmarshal(data, out)
	return out
}

func (m *memStore) AddNamespace(ns *types.Namespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces[ns.ID] = clone(ns)
	return nil
}
func (m *memStore) UpdateNamespace(ns *types.Namespace) error { return m.AddNamespace(ns) }
func (m *memStore) DeleteNamespace(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, id)
	return nil
}
func (m *memStore) VisitNamespaces(v storage.Visitor[types.Namespace]) error {
	m.mu.Lock()
	items := make([]*types.Namespace, 0, len(m.namespaces))
	for _, n := range m.namespaces {
		items = append(items, n)
	}
	m.mu.Unlock()
	for _, n := range items {
		if err := v(n); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) AddTable(t *types.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.ID] = clone(t)
	return nil
}
func (m *memStore) AddTables(ts []*types.Table) error {
	for _, t := range ts {
		if err := m.AddTable(t); err != nil {
			return err
		}
	}
	return nil
}
func (m *memStore) UpdateTable(t *types.Table) error { return m.AddTable(t) }
func (m *memStore) UpdateTables(ts []*types.Table) error { return m.AddTables(ts) }
func (m *memStore) DeleteTable(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, id)
	return nil
}
func (m *memStore) VisitTables(v storage.Visitor[types.Table]) error {
	m.mu.Lock()
	items := make([]*types.Table, 0, len(m.tables))
	for _, t := range m.tables {
		items = append(items, t)
	}
	m.mu.Unlock()
	for _, t := range items {
		if err := v(t); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) AddTablet(t *types.Tablet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tablets[t.ID] = clone(t)
	return nil
}
func (m *memStore) AddTablets(ts []*types.Tablet) error {
	for _, t := range ts {
		if err := m.AddTablet(t); err != nil {
			return err
		}
	}
	return nil
}
func (m *memStore) UpdateTablet(t *types.Tablet) error { return m.AddTablet(t) }
func (m *memStore) UpdateTablets(ts []*types.Tablet) error { return m.AddTablets(ts) }
func (m *memStore) DeleteTablet(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tablets, id)
	return nil
}
func (m *memStore) VisitTablets(v storage.Visitor[types.Tablet]) error {
	m.mu.Lock()
	items := make([]*types.Tablet, 0, len(m.tablets))
	for _, t := range m.tablets {
		items = append(items, t)
	}
	m.mu.Unlock()
	for _, t := range items {
		if err := v(t); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) AddUDType(u *types.UDType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.udtypes[u.ID] = clone(u)
	return nil
}
func (m *memStore) UpdateUDType(u *types.UDType) error { return m.AddUDType(u) }
func (m *memStore) DeleteUDType(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.udtypes, id)
	return nil
}
func (m *memStore) VisitUDTypes(v storage.Visitor[types.UDType]) error {
	m.mu.Lock()
	items := make([]*types.UDType, 0, len(m.udtypes))
	for _, u := range m.udtypes {
		items = append(items, u)
	}
	m.mu.Unlock()
	for _, u := range items {
		if err := v(u); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) AddRole(r *types.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[r.Name] = clone(r)
	return nil
}
func (m *memStore) UpdateRole(r *types.Role) error { return m.AddRole(r) }
func (m *memStore) DeleteRole(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, name)
	return nil
}
func (m *memStore) VisitRoles(v storage.Visitor[types.Role]) error {
	m.mu.Lock()
	items := make([]*types.Role, 0, len(m.roles))
	for _, r := range m.roles {
		items = append(items, r)
	}
	m.mu.Unlock()
	for _, r := range items {
		if err := v(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) PutClusterConfig(c *types.ClusterConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusterCfg = clone(c)
	return nil
}
func (m *memStore) VisitClusterConfig(v storage.Visitor[types.ClusterConfig]) error {
	m.mu.Lock()
	cfg := m.clusterCfg
	m.mu.Unlock()
	if cfg == nil {
		return nil
	}
	return v(cfg)
}

func (m *memStore) Close() error { return nil }

// newTestService builds a Service wired to a memStore, an always-leader
// isLeaderFn, and an Applier that replays each command straight through
// Dispatch, standing in for pkg/manager's raft Apply -> FSM.Apply round
// trip. The Loader is run once against term 1, matching what Manager does
// on first leadership acquisition.
func newTestService(t testingT, tsFn TSDescriptorsFunc) *Service {
	t.Helper()
	store := newMemStore()
	var svc *Service
	apply := func(op string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		return svc.Dispatch(op, data)
	}
	svc = New(config.Default(), store, func() bool { return true }, apply, tsFn)
	svc.Start()
	if err := svc.OnLeaderElected(1); err != nil {
		t.Fatalf("OnLeaderElected: %v", err)
	}
	return svc
}

// testingT is the subset of *testing.T newTestService needs, so this file
// does not have to import "testing" directly in a way that would leak into
// non-test builds.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
