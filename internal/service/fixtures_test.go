package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/cache"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

// memoryUsers is an in-memory UserRepository that counts calls.
type memoryUsers struct {
	mu       sync.Mutex
	byID     map[string]*domain.User
	calls    map[string]int
	writeErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*domain.User{}, calls: map[string]int{}}
}

func (m *memoryUsers) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Create"]++
	if m.writeErr != nil {
		return m.writeErr
	}
	for _, existing := range m.byID {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	m.byID[user.ID] = &stored
	return nil
}

func (m *memoryUsers) UpdateProfile(_ context.Context, id string, patch domain.ProfileUpdate) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateProfile"]++
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	user, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	applyProfile(user, patch)
	user.UpdatedAt = time.Now().UTC()
	out := *user
	return &out, nil
}

func (m *memoryUsers) Activate(_ context.Context, id string) (*domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Activate"]++
	if m.writeErr != nil {
		return nil, false, m.writeErr
	}
	user, ok := m.byID[id]
	if !ok {
		return nil, false, pgx.ErrNoRows
	}
	activated := !user.Active
	user.Active = true
	out := *user
	return &out, activated, nil
}

// applyProfile mirrors the column-wise semantics of the Postgres UpdateProfile.
func applyProfile(user *domain.User, patch domain.ProfileUpdate) {
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Phone != nil {
		if *patch.Phone == "" {
			user.Phone = nil
		} else {
			phone := *patch.Phone
			user.Phone = &phone
		}
	}
	if !patch.Address.Empty() {
		addr := domain.Address{}
		if user.Address != nil {
			addr = *user.Address
		}
		setIf(&addr.Street, patch.Address.Street)
		setIf(&addr.City, patch.Address.City)
		setIf(&addr.State, patch.Address.State)
		setIf(&addr.Country, patch.Address.Country)
		user.Address = &addr
	}
	if !patch.Privacy.Empty() {
		privacy := domain.DefaultPrivacySettings()
		if user.Privacy != nil {
			privacy = *user.Privacy
		}
		if v := patch.Privacy.ProfileVisibility; v != nil {
			privacy.ProfileVisibility = *v
		}
		if v := patch.Privacy.ShowEmail; v != nil {
			privacy.ShowEmail = *v
		}
		if v := patch.Privacy.ShowPhone; v != nil {
			privacy.ShowPhone = *v
		}
		user.Privacy = &privacy
	}
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (m *memoryUsers) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateRole"]++
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	user, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	out := *user
	return &out, nil
}

func (m *memoryUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateLastLogin"]++
	user, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLoginAt = &at
	return nil
}

func (m *memoryUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Delete"]++
	if _, ok := m.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.byID, id)
	return nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindByID"]++
	user, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *user
	return &out, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindByEmail"]++
	for _, user := range m.byID {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) List(_ context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["List"]++
	filter = filter.Normalize()

	matched := make([]domain.User, 0, len(m.byID))
	for _, user := range m.byID {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		matched = append(matched, *user)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if filter.Offset >= total {
		return []domain.User{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

// memoryCache implements cache.Cache over a map.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	delErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.entries[key]
	return val, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.entries, key)
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newMemoryRevocations() *memoryRevocations {
	return &memoryRevocations{revoked: map[string]time.Duration{}}
}

func (m *memoryRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.revoked[id] = ttl
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[id]
	return ok, nil
}

// eventLog records every event published through the memory broker.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) all() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

func (l *eventLog) ofType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, event := range l.all() {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error {
	return errors.New("broker unavailable")
}

func (failingPublisher) Close() error { return nil }

type harness struct {
	users       *memoryUsers
	cache       *memoryCache
	revocations *memoryRevocations
	events      *eventLog
	tokens      *auth.TokenManager
	auth        *AuthService
	profiles    *UserService
}

func testConfig() config.Config {
	return config.Config{
		Auth:    config.AuthConfig{BcryptCost: 10},
		Profile: config.ProfileConfig{DefaultPhoneRegion: "US"},
	}
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithPublisher(t, nil)
}

func newHarnessWithPublisher(t *testing.T, publisher events.Publisher) *harness {
	t.Helper()

	key := signingKey(t)
	tokens, err := auth.NewTokenManager(key, &key.PublicKey, auth.TokenManagerConfig{
		Issuer:    "user-service",
		Audience:  "user-service-clients",
		AccessTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	h := &harness{
		users:       newMemoryUsers(),
		cache:       newMemoryCache(),
		revocations: newMemoryRevocations(),
		events:      &eventLog{},
		tokens:      tokens,
	}
	if publisher == nil {
		broker := events.NewMemoryBroker()
		broker.SubscribeAll(h.events.record)
		publisher = broker
	}

	logger := zap.NewNop()
	emitter := events.NewEmitter(publisher, logger, time.Second)
	userCache := cache.NewUserCache(h.cache, h.users, cache.DefaultUserTTL, logger)

	cfg := testConfig()
	h.auth = NewAuthService(cfg, AuthDependencies{
		UserRepo:    h.users,
		UserCache:   userCache,
		Tokens:      tokens,
		Revocations: h.revocations,
		Emitter:     emitter,
		Logger:      logger,
	})
	h.profiles = NewUserService(cfg, UserDependencies{
		UserRepo:  h.users,
		UserCache: userCache,
		Emitter:   emitter,
		Logger:    logger,
	})
	return h
}

// register creates an account and returns its public view.
func (h *harness) register(t *testing.T, name, email string, role domain.Role) *domain.PublicUser {
	t.Helper()
	user, err := h.auth.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    email,
		Password: "correct horse battery",
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

// seedAdmin inserts an admin directly; admins cannot self-register.
func (h *harness) seedAdmin(t *testing.T) domain.Principal {
	t.Helper()
	admin := &domain.User{Name: "root", Email: "root@example.com", Role: domain.RoleAdmin, Active: true}
	require.NoError(t, h.users.Create(context.Background(), admin))
	return domain.Principal{UserID: admin.ID, Role: domain.RoleAdmin}
}

func principalOf(user *domain.PublicUser) domain.Principal {
	return domain.Principal{UserID: user.ID, Role: user.Role}
}
