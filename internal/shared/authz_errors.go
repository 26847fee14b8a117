package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an authorization failure.
type ErrorKind string

// Credential, identity, tenant and guard failure kinds.
const (
	KindTokenMissing        ErrorKind = "token_missing"
	KindTokenInvalid        ErrorKind = "token_invalid"
	KindTokenExpired        ErrorKind = "token_expired"
	KindUserNotFound        ErrorKind = "user_not_found"
	KindUserNotConfirmed    ErrorKind = "user_not_confirmed"
	KindUserInactive        ErrorKind = "user_inactive"
	KindCompanyRequired     ErrorKind = "company_required"
	KindInvalidCompanyID    ErrorKind = "invalid_company_id"
	KindCompanyNotFound     ErrorKind = "company_not_found"
	KindCompanySuspended    ErrorKind = "company_suspended"
	KindCompanyAccessDenied ErrorKind = "company_access_denied"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindInternal            ErrorKind = "internal"
)

// AuthError is the typed failure returned by every resolver for expected
// conditions. Detail is safe to show to the caller.
type AuthError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// Sentinels usable with errors.Is; matching is by kind only.
var (
	ErrTokenMissing        = &AuthError{Kind: KindTokenMissing}
	ErrTokenInvalid        = &AuthError{Kind: KindTokenInvalid}
	ErrTokenExpired        = &AuthError{Kind: KindTokenExpired}
	ErrUserNotFound        = &AuthError{Kind: KindUserNotFound}
	ErrUserNotConfirmed    = &AuthError{Kind: KindUserNotConfirmed}
	ErrUserInactive        = &AuthError{Kind: KindUserInactive}
	ErrCompanyRequired     = &AuthError{Kind: KindCompanyRequired}
	ErrInvalidCompanyID    = &AuthError{Kind: KindInvalidCompanyID}
	ErrCompanyNotFound     = &AuthError{Kind: KindCompanyNotFound}
	ErrCompanySuspended    = &AuthError{Kind: KindCompanySuspended}
	ErrCompanyAccessDenied = &AuthError{Kind: KindCompanyAccessDenied}
	ErrPermissionDenied    = &AuthError{Kind: KindPermissionDenied}
)

// NewAuthError builds an AuthError with a caller-facing detail.
func NewAuthError(kind ErrorKind, detail string) *AuthError {
	return &AuthError{Kind: kind, Detail: detail}
}

// InternalError wraps an infrastructure fault. The cause is kept for logging
// but never rendered to the caller.
func InternalError(op string, err error) *AuthError {
	return &AuthError{Kind: KindInternal, Err: fmt.Errorf("%s: %w", op, err)}
}

func (e *AuthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "auth: " + string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports kind equality so sentinels match errors carrying extra detail.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the AuthError kind from err.
func KindOf(err error) (ErrorKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr != nil {
		return authErr.Kind, true
	}
	return "", false
}
