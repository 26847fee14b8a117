package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (VerifiedToken, error)
}

// PrincipalSource resolves a user id to a principal.
type PrincipalSource interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*Principal, error)
}

// Authenticator is the first stage of the authorization pipeline: it verifies
// the bearer token, resolves the principal and attaches both to the request
// together with the principal's global grants.
type Authenticator struct {
	verifier   Verifier
	principals PrincipalSource
	logger     *slog.Logger
	metrics    Metrics
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(verifier Verifier, principals PrincipalSource, logger *slog.Logger, metrics Metrics) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Authenticator{verifier: verifier, principals: principals, logger: logger, metrics: metrics}
}

// Require rejects requests without a valid token for a usable account.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := a.Authenticate(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate runs verification and resolution for r and returns the
// enriched context.
func (a *Authenticator) Authenticate(r *http.Request) (context.Context, error) {
	raw, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	ctx := r.Context()
	tok, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	p, err := a.principals.Resolve(ctx, tok.UserID)
	if err != nil {
		return nil, err
	}
	ctx = ContextWithToken(ctx, tok)
	ctx = ContextWithPrincipal(ctx, p)
	ctx = rbac.ContextWithGrants(ctx, rbac.NewGrants(p, uuid.Nil))
	return ctx, nil
}

func (a *Authenticator) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := shared.KindOf(err)
	if !ok {
		kind = shared.KindInternal
	}
	a.metrics.ObserveAuthFailure(string(kind))
	if kind == shared.KindInternal {
		a.logger.Error("authenticate", slog.String("path", r.URL.Path), slog.Any("error", err))
	} else {
		a.logger.Warn("authenticate", slog.String("kind", string(kind)), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", shared.NewAuthError(shared.KindTokenMissing, "bearer token required")
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", shared.NewAuthError(shared.KindTokenInvalid, "unsupported authorization scheme")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", shared.NewAuthError(shared.KindTokenMissing, "bearer token required")
	}
	return token, nil
}
