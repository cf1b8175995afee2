package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/cache"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

// UserService manages profiles and roles. Reads go through the user cache;
// every write hits the store first and then invalidates the cached entry.
type UserService struct {
	users       repository.UserRepository
	userCache   *cache.UserCache
	emitter     *events.Emitter
	logger      *zap.Logger
	phoneRegion string
}

// UserDependencies encapsulates collaborators for the user service.
type UserDependencies struct {
	UserRepo  repository.UserRepository
	UserCache *cache.UserCache
	Emitter   *events.Emitter
	Logger    *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(cfg config.Config, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:       deps.UserRepo,
		userCache:   deps.UserCache,
		emitter:     deps.Emitter,
		logger:      logger,
		phoneRegion: cfg.Profile.DefaultPhoneRegion,
	}
}

// List returns a page of users and the total match count. Admin only.
func (s *UserService) List(ctx context.Context, caller domain.Principal, filter domain.UserFilter) ([]domain.PublicUser, int, error) {
	if err := auth.RequireAdmin(caller); err != nil {
		return nil, 0, err
	}

	users, total, err := s.users.List(ctx, filter.Normalize())
	if err != nil {
		return nil, 0, apperrors.NewInternalError(err)
	}

	result := make([]domain.PublicUser, 0, len(users))
	for i := range users {
		result = append(result, users[i].Public())
	}
	return result, total, nil
}

// Get returns a profile through the read-through cache.
func (s *UserService) Get(ctx context.Context, caller domain.Principal, id string) (*domain.PublicUser, error) {
	id, err := s.authorizeOwner(caller, id)
	if err != nil {
		return nil, err
	}

	user, err := s.userCache.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	public := user.Public()
	return &public, nil
}

// Update applies a profile patch owned by the caller (or any profile for admins).
// Only the named fields are written; the address and privacy settings are upserted.
func (s *UserService) Update(ctx context.Context, caller domain.Principal, id string, patch domain.ProfileUpdate) (*domain.PublicUser, error) {
	id, err := s.authorizeOwner(caller, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperrors.NewValidationError("no updatable fields supplied", nil)
	}
	patch, err = s.normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpdateProfile(ctx, id, patch)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.userCache.Invalidate(ctx, id)
	s.emitter.Emit(ctx, events.EventUserUpdated, user)

	public := user.Public()
	return &public, nil
}

// normalizePatch trims and validates the patch. A blank phone becomes an
// empty string, which clears the stored phone.
func (s *UserService) normalizePatch(patch domain.ProfileUpdate) (domain.ProfileUpdate, error) {
	out := domain.ProfileUpdate{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return out, apperrors.NewValidationError("name cannot be empty", nil)
		}
		out.Name = &name
	}
	if patch.Phone != nil {
		phone, err := normalizeOptionalPhone(patch.Phone, s.phoneRegion)
		if err != nil {
			return out, err
		}
		if phone == nil {
			phone = new(string)
		}
		out.Phone = phone
	}
	if !patch.Address.Empty() {
		addr := patch.Address.Trimmed()
		out.Address = &addr
	}
	if !patch.Privacy.Empty() {
		if v := patch.Privacy.ProfileVisibility; v != nil && !v.Valid() {
			return out, apperrors.NewValidationError("invalid profile visibility", map[string]any{"profile_visibility": string(*v)})
		}
		privacy := *patch.Privacy
		out.Privacy = &privacy
	}
	return out, nil
}

// Delete removes a user. Admin only, regardless of ownership.
func (s *UserService) Delete(ctx context.Context, caller domain.Principal, id string) error {
	if err := auth.RequireAdmin(caller); err != nil {
		return err
	}
	id, err := parseUserID(id)
	if err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}
	s.userCache.Invalidate(ctx, id)

	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("by", caller.UserID))
	s.emitter.Emit(ctx, events.EventUserDeleted, user)
	return nil
}

// UpdateRole changes a user's role. Admin only, regardless of ownership.
// Tokens already issued keep their role claim until they expire.
func (s *UserService) UpdateRole(ctx context.Context, caller domain.Principal, id string, role domain.Role) (*domain.PublicUser, error) {
	if err := auth.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	id, err := parseUserID(id)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.userCache.Invalidate(ctx, id)

	s.logger.Info("user role updated", zap.String("user_id", id), zap.String("role", string(role)), zap.String("by", caller.UserID))
	s.emitter.Emit(ctx, events.EventUserUpdated, user)

	public := user.Public()
	return &public, nil
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, repository.ErrEmailTaken):
		return apperrors.NewConflict("email already registered", nil)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperrors.NewInternalError(err)
}

// authorizeOwner checks owner-or-admin against the canonical id and returns it.
// A malformed id is reported as not found only to callers allowed to see it.
func (s *UserService) authorizeOwner(caller domain.Principal, id string) (string, error) {
	canonical, parseErr := parseUserID(id)
	if parseErr == nil {
		id = canonical
	}
	if err := auth.AuthorizeOwner(caller, id); err != nil {
		return "", err
	}
	if parseErr != nil {
		return "", parseErr
	}
	return id, nil
}

// parseUserID returns the canonical form of a path id. Ids that are not
// UUIDs cannot name a stored user, so they are reported as not found.
func parseUserID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", apperrors.NewNotFound("user", nil)
	}
	return parsed.String(), nil
}

// normalizeOptionalPhone returns nil for an absent or blank phone. A number
// that parses but is not assigned anywhere is unprocessable rather than malformed.
func normalizeOptionalPhone(raw *string, region string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	phone, err := domain.NormalizePhone(*raw, region)
	if errors.Is(err, domain.ErrPhoneNotDialable) {
		return nil, apperrors.NewUnprocessable("phone number is not dialable")
	}
	if err != nil {
		return nil, apperrors.NewValidationError("invalid phone number", map[string]any{"phone": *raw})
	}
	return &phone, nil
}
