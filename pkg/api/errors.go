package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuemby/catalogd/pkg/catalogerr"
)

// ErrorResponse is the JSON body returned for any failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps err to a wire code and an HTTP status, and encodes it
// as an ErrorResponse. Unrecognized errors are reported as an opaque
// internal error rather than leaking their Go-level message verbatim.
func writeError(w http.ResponseWriter, err error) {
	var cerr *catalogerr.Error
	if errors.As(err, &cerr) {
		writeJSON(w, httpStatusForKind(cerr.Kind), ErrorResponse{Code: cerr.WireCode(), Message: cerr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "REMOTE_ERROR", Message: "internal error"})
}

func httpStatusForKind(k catalogerr.Kind) int {
	switch k {
	case catalogerr.KindNotFound:
		return http.StatusNotFound
	case catalogerr.KindAlreadyPresent:
		return http.StatusConflict
	case catalogerr.KindInvalidArgument, catalogerr.KindInvalidSchema, catalogerr.KindInvalidClusterConfig:
		return http.StatusBadRequest
	case catalogerr.KindIllegalState, catalogerr.KindNamespaceIsNotEmpty, catalogerr.KindCannotDeleteDefaultNamespace,
		catalogerr.KindTooManyTablets, catalogerr.KindReplicationFactorTooHigh, catalogerr.KindConfigVersionMismatch:
		return http.StatusConflict
	case catalogerr.KindServiceUnavailable, catalogerr.KindLeaderNotReadyToServe, catalogerr.KindTryAgain:
		return http.StatusServiceUnavailable
	case catalogerr.KindTimedOut:
		return http.StatusGatewayTimeout
	case catalogerr.KindCorruption, catalogerr.KindRemoteError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "INVALID_ARGUMENT", Message: "malformed request body"})
		return false
	}
	return true
}
