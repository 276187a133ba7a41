package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusForKind(t *testing.T) {
	cases := []struct {
		kind catalogerr.Kind
		want int
	}{
		{catalogerr.KindNotFound, http.StatusNotFound},
		{catalogerr.KindAlreadyPresent, http.StatusConflict},
		{catalogerr.KindInvalidArgument, http.StatusBadRequest},
		{catalogerr.KindInvalidSchema, http.StatusBadRequest},
		{catalogerr.KindIllegalState, http.StatusConflict},
		{catalogerr.KindServiceUnavailable, http.StatusServiceUnavailable},
		{catalogerr.KindLeaderNotReadyToServe, http.StatusServiceUnavailable},
		{catalogerr.KindTryAgain, http.StatusServiceUnavailable},
		{catalogerr.KindTimedOut, http.StatusGatewayTimeout},
		{catalogerr.KindCorruption, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, httpStatusForKind(c.kind), "kind %s", c.kind)
	}
}

func TestWriteErrorWithCatalogError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, catalogerr.New(catalogerr.KindNotFound, "table %s not found", "t1").WithCode("TABLE_NOT_FOUND"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "TABLE_NOT_FOUND")
	assert.Contains(t, rec.Body.String(), "t1")
}

func TestWriteErrorWithPlainErrorIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("some internal detail that should not leak"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "some internal detail")
	assert.Contains(t, rec.Body.String(), "REMOTE_ERROR")
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/namespaces", strings.NewReader(`{not json`))

	var v map[string]any
	ok := decodeJSON(rec, req, &v)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
