package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/domain"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// memoryCache is a map-backed Cache honoring the found/miss contract.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	delete(m.ttls, key)
	return nil
}

type countingStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	calls int
}

func (s *countingStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (s *countingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sampleUser() *domain.User {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.User{
		ID:           "u1",
		Email:        "john@example.com",
		Name:         "John Doe",
		PasswordHash: "$2a$10$hash",
		Role:         domain.RoleClient,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestUserCache_MissPopulatesThenHits(t *testing.T) {
	store := &countingStore{users: map[string]*domain.User{"u1": sampleUser()}}
	mem := newMemoryCache()
	uc := NewUserCache(mem, store, 300*time.Second, zap.NewNop())

	first, err := uc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, mem.ttls["user:u1"])

	second, err := uc.Get(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Calls(), "second read within TTL must be served from cache")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, first.Role, second.Role)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.Empty(t, second.PasswordHash, "cached snapshots never carry the password hash")
}

func TestUserCache_HitSkipsStore(t *testing.T) {
	cached := sampleUser()
	cached.PasswordHash = ""
	raw, err := json.Marshal(cached)
	require.NoError(t, err)

	mc := &mockCache{}
	mc.On("Get", mock.Anything, "user:u1").Return(raw, true, nil)
	store := &countingStore{users: map[string]*domain.User{}}

	got, err := NewUserCache(mc, store, 0, nil).Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", got.Name)
	assert.Equal(t, 0, store.Calls())
	mc.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserCache_SetUsesUserTTL(t *testing.T) {
	mc := &mockCache{}
	mc.On("Get", mock.Anything, "user:u1").Return(nil, false, nil)
	mc.On("Set", mock.Anything, "user:u1", mock.Anything, 300*time.Second).Return(nil)
	store := &countingStore{users: map[string]*domain.User{"u1": sampleUser()}}

	_, err := NewUserCache(mc, store, 0, zap.NewNop()).Get(context.Background(), "u1")
	require.NoError(t, err)
	mc.AssertExpectations(t)
}

func TestUserCache_FailuresFallBackToStore(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mc *mockCache)
	}{
		{"get error", func(mc *mockCache) {
			mc.On("Get", mock.Anything, "user:u1").Return(nil, false, errors.New("redis connection failed"))
		}},
		{"malformed payload", func(mc *mockCache) {
			mc.On("Get", mock.Anything, "user:u1").Return([]byte("invalid json"), true, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &mockCache{}
			tt.setup(mc)
			mc.On("Set", mock.Anything, "user:u1", mock.Anything, mock.Anything).Return(errors.New("redis write failed"))
			store := &countingStore{users: map[string]*domain.User{"u1": sampleUser()}}

			got, err := NewUserCache(mc, store, 0, zap.NewNop()).Get(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, "u1", got.ID)
			assert.Equal(t, 1, store.Calls())
		})
	}
}

func TestUserCache_NotFoundIsNotCached(t *testing.T) {
	mc := &mockCache{}
	mc.On("Get", mock.Anything, "user:missing").Return(nil, false, nil)
	store := &countingStore{users: map[string]*domain.User{}}

	_, err := NewUserCache(mc, store, 0, zap.NewNop()).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	mc.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserCache_InvalidateThenReload(t *testing.T) {
	user := sampleUser()
	store := &countingStore{users: map[string]*domain.User{"u1": user}}
	mem := newMemoryCache()
	uc := NewUserCache(mem, store, 0, zap.NewNop())

	_, err := uc.Get(context.Background(), "u1")
	require.NoError(t, err)

	store.mu.Lock()
	store.users["u1"].Name = "Jane Doe"
	store.mu.Unlock()
	uc.Invalidate(context.Background(), "u1")

	got, err := uc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, 2, store.Calls())
}

func TestUserCache_InvalidateSwallowsErrors(t *testing.T) {
	mc := &mockCache{}
	mc.On("Del", mock.Anything, "user:u1").Return(errors.New("redis down"))

	assert.NotPanics(t, func() {
		NewUserCache(mc, &countingStore{}, 0, zap.NewNop()).Invalidate(context.Background(), "u1")
	})
	mc.AssertExpectations(t)
}
