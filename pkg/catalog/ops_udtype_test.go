package catalog

import (
	"testing"

	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultNamespaceID(t *testing.T, svc *Service) string {
	t.Helper()
	list, err := svc.ListNamespaces("default")
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0].ID
}

func TestCreateUDType(t *testing.T) {
	svc := newTestService(t, nil)
	nsID := defaultNamespaceID(t, svc)

	u, err := svc.CreateUDType(nsID, "address", []string{"street", "city"}, []string{"text", "text"})
	require.NoError(t, err)
	assert.Equal(t, "address", u.Name)
	assert.NotEmpty(t, u.ID)
}

func TestCreateUDTypeRejectsMismatchedFieldVectors(t *testing.T) {
	svc := newTestService(t, nil)
	nsID := defaultNamespaceID(t, svc)

	_, err := svc.CreateUDType(nsID, "address", []string{"street"}, []string{"text", "text"})
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindInvalidSchema))
}

func TestCreateUDTypeRejectsUnknownNamespace(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateUDType("does-not-exist", "address", []string{"street"}, []string{"text"})
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindNotFound))
}

func TestCreateUDTypeRejectsDuplicateInNamespace(t *testing.T) {
	svc := newTestService(t, nil)
	nsID := defaultNamespaceID(t, svc)

	_, err := svc.CreateUDType(nsID, "address", []string{"street"}, []string{"text"})
	require.NoError(t, err)

	_, err = svc.CreateUDType(nsID, "address", []string{"street"}, []string{"text"})
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindAlreadyPresent))
}

func TestDeleteUDType(t *testing.T) {
	svc := newTestService(t, nil)
	nsID := defaultNamespaceID(t, svc)

	u, err := svc.CreateUDType(nsID, "address", []string{"street"}, []string{"text"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUDType(u.ID))

	_, err = svc.GetUDType(u.ID)
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindNotFound))
}

func TestDeleteUDTypeRejectsUnknownID(t *testing.T) {
	svc := newTestService(t, nil)

	err := svc.DeleteUDType("does-not-exist")
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.KindNotFound))
}

func TestListUDTypesScopedToNamespace(t *testing.T) {
	svc := newTestService(t, nil)
	nsID := defaultNamespaceID(t, svc)

	_, err := svc.CreateUDType(nsID, "address", []string{"street"}, []string{"text"})
	require.NoError(t, err)

	other, err := svc.CreateNamespace("other")
	require.NoError(t, err)
	_, err = svc.CreateUDType(other.ID, "coords", []string{"lat", "lng"}, []string{"double", "double"})
	require.NoError(t, err)

	list, err := svc.ListUDTypes(nsID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "address", list[0].Name)
}
