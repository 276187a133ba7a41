package catalog

import (
	"testing"

	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNamespace(t *testing.T) {
	svc := newTestService(t, nil)

	ns, err := svc.CreateNamespace("widgets")
	require.NoError(t, err)
	assert.Equal(t, "widgets", ns.Name)
	assert.NotEmpty(t, ns.ID)
}

func TestCreateNamespaceRejectsEmptyName(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateNamespace("")
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindInvalidArgument))
}

func TestCreateNamespaceRejectsDuplicate(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateNamespace("widgets")
	require.NoError(t, err)

	_, err = svc.CreateNamespace("widgets")
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindAlreadyPresent))
}

func TestDeleteNamespace(t *testing.T) {
	svc := newTestService(t, nil)

	ns, err := svc.CreateNamespace("widgets")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNamespace(ns.ID))

	_, err = svc.ListNamespaces("")
	require.NoError(t, err)
}

func TestDeleteNamespaceRejectsDefault(t *testing.T) {
	svc := newTestService(t, nil)

	list, err := svc.ListNamespaces("default")
	require.NoError(t, err)
	require.Len(t, list, 1)

	err = svc.DeleteNamespace(list[0].ID)
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindCannotDeleteDefaultNamespace))
}

func TestDeleteNamespaceRejectsUnknownID(t *testing.T) {
	svc := newTestService(t, nil)

	err := svc.DeleteNamespace("does-not-exist")
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindNotFound))
}

func TestListNamespacesFiltersBySubstring(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateNamespace("widgets")
	require.NoError(t, err)
	_, err = svc.CreateNamespace("gadgets")
	require.NoError(t, err)

	list, err := svc.ListNamespaces("idget")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "widgets", list[0].Name)
}
