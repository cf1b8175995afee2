package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/cache"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
	"github.com/spec-kit/user-service/pkg/util/besteffort"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

const invalidCredentials = "invalid credentials"

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Phone    *string
}

// AuthService coordinates registration, login, refresh and logout.
type AuthService struct {
	users       repository.UserRepository
	userCache   *cache.UserCache
	tokens      *auth.TokenManager
	revocations auth.RevocationList
	emitter     *events.Emitter
	logger      *zap.Logger
	bcryptCost  int
	phoneRegion string
	now         func() time.Time

	dummyOnce sync.Once
	dummy     string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	UserCache   *cache.UserCache
	Tokens      *auth.TokenManager
	Revocations auth.RevocationList
	Emitter     *events.Emitter
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       deps.UserRepo,
		userCache:   deps.UserCache,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		emitter:     deps.Emitter,
		logger:      logger,
		bcryptCost:  cfg.Auth.BcryptCost,
		phoneRegion: cfg.Profile.DefaultPhoneRegion,
		now:         time.Now,
	}
}

// Register creates an inactive account and emits user.registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.PublicUser, error) {
	email := domain.NormalizeEmail(in.Email)

	role := in.Role
	if role == "" {
		role = domain.RoleClient
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	if role == domain.RoleAdmin {
		return nil, apperrors.NewValidationError("admin accounts cannot be self-registered", map[string]any{"role": string(role)})
	}

	phone, err := normalizeOptionalPhone(in.Phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperrors.NewValidationError("password is too long", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       false,
		Phone:        phone,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	// the mailer delivers the verification link from the event payload
	verification, err := s.tokens.IssueVerificationToken(user)
	besteffort.Discard(s.logger, "auth.verification_token", err, zap.String("user_id", user.ID))
	s.emitter.EmitRegistered(ctx, user, verification)

	public := user.Public()
	return &public, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// burn comparable time so response latency does not reveal unknown emails
			_ = auth.ComparePassword(s.dummyHash(), password)
			return nil, apperrors.NewUnauthorized(invalidCredentials)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return nil, mapStoreError(err)
	}
	s.userCache.Invalidate(ctx, user.ID)

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The user is re-read from
// the store, never the cache, so the new access token carries the current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid refresh token")
	}

	if err := s.ensureNotRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid refresh token")
		}
		return nil, apperrors.NewInternalError(err)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return pair, nil
}

// Logout revokes the presented access token and, when given, the caller's
// refresh token. If the revocation list cannot be written the call fails;
// it never reports a revocation that did not happen.
func (s *AuthService) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	if access == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if s.revocations == nil {
		// without a revocation list there is nothing to revoke; never report success
		return apperrors.NewUnimplemented("token revocation")
	}

	toRevoke := []*auth.Claims{access}
	if refreshToken != "" {
		refresh, err := s.tokens.VerifyRefresh(refreshToken)
		if err != nil || refresh.Subject != access.Subject {
			return apperrors.NewUnauthorized("invalid refresh token")
		}
		toRevoke = append(toRevoke, refresh)
	}

	for _, claims := range toRevoke {
		if err := s.revocations.Revoke(ctx, claims.ID, s.tokens.RemainingTTL(claims)); err != nil {
			s.logger.Error("token revocation failed", zap.String("user_id", access.Subject), zap.Error(err))
			return apperrors.NewInternalError(err)
		}
	}
	s.logger.Info("user logged out", zap.String("user_id", access.Subject), zap.Int("revoked", len(toRevoke)))
	return nil
}

// VerifyEmail activates the token's subject and emits user.verified.
// Verifying an active account is a no-op without a second event.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.PublicUser, error) {
	claims, err := s.tokens.VerifyVerification(token)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid or expired verification token", nil)
	}

	user, activated, err := s.users.Activate(ctx, claims.Subject)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if activated {
		s.userCache.Invalidate(ctx, user.ID)
		s.emitter.Emit(ctx, events.EventUserVerified, user)
	}

	public := user.Public()
	return &public, nil
}

// ForgotPassword is an extension point; reset token issuance is not built.
func (s *AuthService) ForgotPassword(_ context.Context, _ string) error {
	return apperrors.NewUnimplemented("password reset")
}

// ResetPassword is an extension point; reset token issuance is not built.
func (s *AuthService) ResetPassword(_ context.Context, _, _ string) error {
	return apperrors.NewUnimplemented("password reset")
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// dummyHash is compared against when the email is unknown.
func (s *AuthService) dummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummy, _ = auth.HashPassword("not-a-real-password", s.bcryptCost)
	})
	return s.dummy
}

func (s *AuthService) ensureNotRevoked(ctx context.Context, tokenID string) error {
	if s.revocations == nil {
		return nil
	}
	revoked, err := s.revocations.IsRevoked(ctx, tokenID)
	if err != nil {
		s.logger.Error("revocation lookup failed", zap.Error(err))
		return apperrors.NewInternalError(err)
	}
	if revoked {
		return apperrors.NewUnauthorized("invalid refresh token")
	}
	return nil
}
