package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bureau.org/internal/domain"
)

func TestWithIdentityKeepsSessionID(t *testing.T) {
	judge := domain.Actor{ID: "j1", Role: domain.RoleJudge, IsActive: true}
	ctx := WithSession(context.Background(), RequestSession{ID: "sid-1", Identity: Normal(master())})

	ctx = WithIdentity(ctx, SessionIdentity{Active: judge, Original: &domain.Actor{ID: "m"}})
	s, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "sid-1", s.ID)
	assert.Equal(t, "j1", s.Identity.Active.ID)

	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.True(t, id.Impersonating())
}

func TestIdentityFromBareContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Normal(master()))
	s, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Empty(t, s.ID)
	assert.Equal(t, "m", s.Identity.Active.ID)
}
