package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// ErrNoRevocationList is returned by Logout when tokens cannot be revoked.
var ErrNoRevocationList = errors.New("auth: revocation list is not configured")

// errBadCredentials is returned for every credential mismatch so callers
// cannot tell unknown emails from wrong passwords.
var errBadCredentials = &shared.AuthError{Kind: shared.KindTokenInvalid, Detail: "invalid credentials", Err: shared.ErrInvalidCredentials}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service wraps authentication business rules.
type Service struct {
	users       UserStore
	sessions    SessionStore
	issuer      *TokenIssuer
	revocations RevocationList
	invalidator Invalidator
	policy      StatusPolicy
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceDeps groups Service collaborators.
type ServiceDeps struct {
	Users       UserStore
	Sessions    SessionStore
	Issuer      *TokenIssuer
	Revocations RevocationList
	Invalidator Invalidator
	Policy      StatusPolicy
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewService constructs a new Service.
func NewService(deps ServiceDeps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		users:       deps.Users,
		sessions:    deps.Sessions,
		issuer:      deps.Issuer,
		revocations: deps.Revocations,
		invalidator: deps.Invalidator,
		policy:      deps.Policy,
		logger:      deps.Logger,
		now:         deps.Now,
	}
}

// Authenticate validates email/password credentials and the account status.
func (s *Service) Authenticate(ctx context.Context, email, password string) (UserRecord, error) {
	rec, err := s.users.LoadUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, shared.ErrNotFound) {
		return UserRecord{}, errBadCredentials
	}
	if err != nil {
		return UserRecord{}, shared.InternalError("auth: authenticate", err)
	}
	if rec.PasswordHash == "" {
		return UserRecord{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return UserRecord{}, errBadCredentials
	}
	if err := s.policy.Check(rec); err != nil {
		return UserRecord{}, err
	}
	return rec, nil
}

// Login authenticates and issues a token, recording the login session.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (LoginResult, error) {
	rec, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, claims, err := s.issuer.Issue(ctx, rec.ID)
	if err != nil {
		return LoginResult{}, shared.InternalError("auth: login", err)
	}
	session := LoginSession{
		ID:        claims.ID,
		UserID:    rec.ID,
		CreatedAt: s.now().UTC(),
		ExpiresAt: claims.ExpiresAt.Time,
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		s.logger.Warn("register session", slog.String("user_id", rec.ID.String()), slog.Any("error", err))
	}
	return LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout revokes tok, removes its session and drops the cached principal.
func (s *Service) Logout(ctx context.Context, tok VerifiedToken) error {
	if s.revocations == nil {
		return shared.InternalError("auth: logout", ErrNoRevocationList)
	}
	if err := s.revocations.Revoke(ctx, tok.TokenID, tok.ExpiresAt); err != nil {
		return shared.InternalError("auth: logout", err)
	}
	if err := s.sessions.DeleteSession(ctx, tok.TokenID); err != nil {
		s.logger.Warn("remove session", slog.Any("error", err))
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, tok.UserID); err != nil {
			return err
		}
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that are past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpiredSessions(ctx, s.now())
}
