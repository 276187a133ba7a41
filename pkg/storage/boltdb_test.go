package storage

import (
	"testing"

	"github.com/cuemby/catalogd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStoreNamespaceCRUD(t *testing.T) {
	s := newTestStore(t)
	ns := &types.Namespace{ID: "ns1", Name: "default"}
	require.NoError(t, s.AddNamespace(ns))

	var found []types.Namespace
	require.NoError(t, s.VisitNamespaces(func(n *types.Namespace) error {
		found = append(found, *n)
		return nil
	}))
	require.Len(t, found, 1)
	assert.Equal(t, "default", found[0].Name)

	ns.Name = "renamed"
	require.NoError(t, s.UpdateNamespace(ns))
	found = nil
	require.NoError(t, s.VisitNamespaces(func(n *types.Namespace) error {
		found = append(found, *n)
		return nil
	}))
	require.Len(t, found, 1)
	assert.Equal(t, "renamed", found[0].Name)

	require.NoError(t, s.DeleteNamespace("ns1"))
	found = nil
	require.NoError(t, s.VisitNamespaces(func(n *types.Namespace) error {
		found = append(found, *n)
		return nil
	}))
	assert.Empty(t, found)
}

func TestBoltStoreTableBatchWrite(t *testing.T) {
	s := newTestStore(t)
	tables := []*types.Table{
		{ID: "t1", Name: "a"},
		{ID: "t2", Name: "b"},
	}
	require.NoError(t, s.AddTables(tables))

	var names []string
	require.NoError(t, s.VisitTables(func(tb *types.Table) error {
		names = append(names, tb.Name)
		return nil
	}))
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	tables[0].Name = "a-renamed"
	require.NoError(t, s.UpdateTables(tables))
	names = nil
	require.NoError(t, s.VisitTables(func(tb *types.Table) error {
		names = append(names, tb.Name)
		return nil
	}))
	assert.Contains(t, names, "a-renamed")

	require.NoError(t, s.DeleteTable("t1"))
	names = nil
	require.NoError(t, s.VisitTables(func(tb *types.Table) error {
		names = append(names, tb.Name)
		return nil
	}))
	assert.NotContains(t, names, "a-renamed")
}

func TestBoltStoreTabletBatchWrite(t *testing.T) {
	s := newTestStore(t)
	tablets := []*types.Tablet{{ID: "tab1", TableID: "t1"}, {ID: "tab2", TableID: "t1"}}
	require.NoError(t, s.AddTablets(tablets))

	var count int
	require.NoError(t, s.VisitTablets(func(*types.Tablet) error {
		count++
		return nil
	}))
	assert.Equal(t, 2, count)

	require.NoError(t, s.DeleteTablet("tab1"))
	count = 0
	require.NoError(t, s.VisitTablets(func(*types.Tablet) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestBoltStoreUDTypeCRUD(t *testing.T) {
	s := newTestStore(t)
	ut := &types.UDType{ID: "u1", Name: "addr"}
	require.NoError(t, s.AddUDType(ut))

	var found bool
	require.NoError(t, s.VisitUDTypes(func(u *types.UDType) error {
		if u.ID == "u1" {
			found = true
		}
		return nil
	}))
	assert.True(t, found)

	require.NoError(t, s.DeleteUDType("u1"))
	found = false
	require.NoError(t, s.VisitUDTypes(func(u *types.UDType) error {
		if u.ID == "u1" {
			found = true
		}
		return nil
	}))
	assert.False(t, found)
}

func TestBoltStoreRoleCRUD(t *testing.T) {
	s := newTestStore(t)
	role := &types.Role{Name: "cassandra", IsSuperuser: true}
	require.NoError(t, s.AddRole(role))

	var found *types.Role
	require.NoError(t, s.VisitRoles(func(r *types.Role) error {
		if r.Name == "cassandra" {
			cp := *r
			found = &cp
		}
		return nil
	}))
	require.NotNil(t, found)
	assert.True(t, found.IsSuperuser)

	require.NoError(t, s.DeleteRole("cassandra"))
	found = nil
	require.NoError(t, s.VisitRoles(func(r *types.Role) error {
		if r.Name == "cassandra" {
			found = r
		}
		return nil
	}))
	assert.Nil(t, found)
}

func TestBoltStoreClusterConfigSingleton(t *testing.T) {
	s := newTestStore(t)

	var visited bool
	require.NoError(t, s.VisitClusterConfig(func(*types.ClusterConfig) error {
		visited = true
		return nil
	}))
	assert.False(t, visited, "no config persisted yet")

	require.NoError(t, s.PutClusterConfig(&types.ClusterConfig{Version: 1}))
	require.NoError(t, s.PutClusterConfig(&types.ClusterConfig{Version: 2}))

	var last types.ClusterConfig
	require.NoError(t, s.VisitClusterConfig(func(c *types.ClusterConfig) error {
		last = *c
		return nil
	}))
	assert.Equal(t, uint32(2), last.Version, "PutClusterConfig overwrites the singleton record")
}

func TestBoltStoreReopenPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.AddNamespace(&types.Namespace{ID: "ns1", Name: "persisted"}))
	require.NoError(t, s1.Close())

	s2, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	var found bool
	require.NoError(t, s2.VisitNamespaces(func(n *types.Namespace) error {
		if n.Name == "persisted" {
			found = true
		}
		return nil
	}))
	assert.True(t, found)
}
