package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("auth: signing secret is not configured")

// SecretProvider supplies the HS256 signing secret.
type SecretProvider interface {
	SigningSecret(ctx context.Context) ([]byte, error)
}

// StaticSecret is a SecretProvider backed by process configuration.
type StaticSecret []byte

// SigningSecret implements SecretProvider.
func (s StaticSecret) SigningSecret(context.Context) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrMissingSecret
	}
	return s, nil
}

// Claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// VerifiedToken is what the verifier extracts from a valid token.
type VerifiedToken struct {
	UserID    uuid.UUID
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenVerifier validates bearer tokens. It holds no mutable state and is safe
// for concurrent use.
type TokenVerifier struct {
	secrets     SecretProvider
	issuer      string
	revocations RevocationList
	now         func() time.Time
}

// VerifierConfig configures a TokenVerifier. Now is optional. Without
// Revocations the verifier consults an empty in-process list of its own.
type VerifierConfig struct {
	Secrets     SecretProvider
	Issuer      string
	Revocations RevocationList
	Now         func() time.Time
}

// NewTokenVerifier constructs a verifier.
func NewTokenVerifier(cfg VerifierConfig) *TokenVerifier {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	revocations := cfg.Revocations
	if revocations == nil {
		revocations = NewMemoryRevocationList(0, now)
	}
	return &TokenVerifier{secrets: cfg.Secrets, issuer: cfg.Issuer, revocations: revocations, now: now}
}

// Verify checks signature, revocation and expiry, in that order. raw must
// already have its scheme prefix stripped.
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (VerifiedToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return VerifiedToken{}, shared.NewAuthError(shared.KindTokenMissing, "bearer token required")
	}
	secret, err := v.secrets.SigningSecret(ctx)
	if err != nil {
		return VerifiedToken{}, shared.InternalError("auth: signing secret", err)
	}

	// Expiry is checked below against the injected clock, after revocation.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return VerifiedToken{}, shared.NewAuthError(shared.KindTokenInvalid, "token signature invalid")
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return VerifiedToken{}, shared.NewAuthError(shared.KindTokenInvalid, "unexpected issuer")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return VerifiedToken{}, shared.NewAuthError(shared.KindTokenInvalid, "subject missing")
	}
	if claims.ExpiresAt == nil {
		return VerifiedToken{}, shared.NewAuthError(shared.KindTokenInvalid, "expiry missing")
	}

	// Tokens without an id could never be revoked.
	if claims.ID == "" {
		return VerifiedToken{}, shared.NewAuthError(shared.KindTokenInvalid, "token id missing")
	}
	revoked, err := v.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return VerifiedToken{}, shared.InternalError("auth: revocation lookup", err)
	}
	if revoked {
		return VerifiedToken{}, shared.NewAuthError(shared.KindTokenInvalid, "token revoked")
	}

	expiresAt := claims.ExpiresAt.Time
	if !v.now().Before(expiresAt) {
		return VerifiedToken{}, shared.NewAuthError(shared.KindTokenExpired, "token expired")
	}

	out := VerifiedToken{UserID: userID, TokenID: claims.ID, ExpiresAt: expiresAt}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// TokenIssuer signs access tokens.
type TokenIssuer struct {
	secrets SecretProvider
	issuer  string
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenIssuer constructs an issuer. A nil now uses time.Now.
func NewTokenIssuer(secrets SecretProvider, issuer string, ttl time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secrets: secrets, issuer: issuer, ttl: ttl, now: now}
}

// Issue signs a token for userID with a fresh jti.
func (i *TokenIssuer) Issue(ctx context.Context, userID uuid.UUID) (string, Claims, error) {
	if userID == uuid.Nil {
		return "", Claims{}, errors.New("auth: issue: user id is required")
	}
	if i.ttl <= 0 {
		return "", Claims{}, errors.New("auth: issue: ttl must be greater than zero")
	}
	secret, err := i.secrets.SigningSecret(ctx)
	if err != nil {
		return "", Claims{}, err
	}
	now := i.now().UTC().Truncate(time.Second)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		ID:        uuid.NewString(),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims, nil
}
