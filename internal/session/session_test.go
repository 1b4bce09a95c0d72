package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bureau.org/internal/auth"
	"bureau.org/internal/config"
	"bureau.org/internal/domain"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	original := domain.Actor{ID: "m", Role: domain.RoleSentinel, IsMaster: true, IsActive: true}
	id := auth.SessionIdentity{Active: domain.Actor{ID: "j", Role: domain.RoleJudge}, Original: &original}

	require.NoError(t, s.Save(ctx, "sid-1", id, time.Hour))
	got, err := s.Load(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, got.Impersonating())
	assert.Equal(t, "m", got.Original.ID)

	require.NoError(t, s.Delete(ctx, "sid-1"))
	_, err = s.Load(ctx, "sid-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "sid", auth.Normal(domain.Actor{ID: "a"}), time.Minute))
	now = now.Add(2 * time.Minute)
	_, err := s.Load(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Error(t, s.Save(ctx, "", auth.SessionIdentity{}, 0))
}

func TestOpenRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := OpenRedis(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}
