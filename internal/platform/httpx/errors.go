// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = shared.ErrNotFound
	ErrDuplicate    = shared.ErrConflict
	ErrValidation   = shared.ErrInvalidInput
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusForKind maps an authorization failure kind to its HTTP status.
func StatusForKind(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindTokenMissing, shared.KindTokenInvalid, shared.KindTokenExpired:
		return http.StatusUnauthorized
	case shared.KindUserNotFound, shared.KindCompanyNotFound:
		return http.StatusNotFound
	case shared.KindUserNotConfirmed, shared.KindUserInactive,
		shared.KindCompanyAccessDenied, shared.KindCompanySuspended,
		shared.KindPermissionDenied:
		return http.StatusForbidden
	case shared.KindCompanyRequired, shared.KindInvalidCompanyID:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var authErr *shared.AuthError
	if errors.As(err, &authErr) {
		status := StatusForKind(authErr.Kind)
		if status == http.StatusInternalServerError {
			Problem(w, status, "Internal Error", "")
			return
		}
		writeProblem(w, ProblemDetail{
			Type:   "urn:odyssey:auth:" + string(authErr.Kind),
			Title:  http.StatusText(status),
			Status: status,
			Detail: authErr.Detail,
		})
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
