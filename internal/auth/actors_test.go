package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bureau.org/internal/domain"
)

type downActorStore struct{ *MemoryActorStore }

func (downActorStore) ListActors(context.Context) ([]domain.Actor, error) {
	return nil, domain.ErrBackendUnavailable
}

func (downActorStore) GetActor(context.Context, string) (domain.Actor, error) {
	return domain.Actor{}, domain.ErrBackendUnavailable
}

func newActorService(t *testing.T, seed ...domain.Actor) *ActorService {
	t.Helper()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewActorService(NewMemoryActorStore(seed...), NewPolicy(nil), WithActorClock(func() time.Time { return now }))
	require.NoError(t, err)
	return svc
}

func TestCreateActorValidatesEverything(t *testing.T) {
	m := master()
	svc := newActorService(t, m)

	_, err := svc.CreateActor(context.Background(), &m, CreateActorInput{Email: "nope", Role: "pirate", Password: "abc"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]int{}
	for _, fe := range ve.Errors {
		fields[fe.Field]++
	}
	assert.Equal(t, 1, fields["email"])
	assert.Equal(t, 1, fields["role"])
	assert.Equal(t, 2, fields["password"])
}

func TestCreateActorAndAuthenticate(t *testing.T) {
	m := master()
	svc := newActorService(t, m)
	ctx := context.Background()

	created, err := svc.CreateActor(ctx, &m, CreateActorInput{Email: " Judy@Bureau.example ", RealName: "Judy", Role: "judge", Password: "abc1234"})
	require.NoError(t, err)
	assert.Equal(t, "judy@bureau.example", created.Email)
	assert.True(t, created.IsActive)

	got, err := svc.Authenticate(ctx, "judy@bureau.example", "abc1234")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Authenticate(ctx, "judy@bureau.example", "wrong123")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = svc.Authenticate(ctx, "ghost@bureau.example", "abc1234")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.CreateActor(ctx, &m, CreateActorInput{Email: "judy@bureau.example", Role: "judge", Password: "abc1234"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateActorRequiresManageUsers(t *testing.T) {
	judge := *actor("j", domain.RoleJudge)
	svc := newActorService(t, judge)
	_, err := svc.CreateActor(context.Background(), &judge, CreateActorInput{Email: "x@y.io", Role: "citizen", Password: "abc1234"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestDeactivateProtectsActiveMaster(t *testing.T) {
	m := master()
	other := *actor("c", domain.RoleCitizen)
	svc := newActorService(t, m, other)
	ctx := context.Background()

	_, err := svc.DeactivateActor(ctx, &m, m.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	updated, err := svc.DeactivateActor(ctx, &m, other.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = svc.Authenticate(ctx, other.Email, "whatever1")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestChangePassword(t *testing.T) {
	m := master()
	hash, err := HashPassword("abc1234")
	require.NoError(t, err)
	c := *actor("c", domain.RoleCitizen)
	c.PasswordHash = hash
	other := *actor("o", domain.RoleCitizen)
	svc := newActorService(t, m, c, other)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ChangePassword(ctx, &c, c.ID, "abc1234", "short"), domain.ErrValidation)
	assert.ErrorIs(t, svc.ChangePassword(ctx, &c, c.ID, "wrong99", "xyz98765"), domain.ErrValidation)
	require.NoError(t, svc.ChangePassword(ctx, &c, c.ID, "abc1234", "xyz98765"))
	_, err = svc.Authenticate(ctx, c.Email, "xyz98765")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, &c, other.ID, "", "xyz98765"), domain.ErrPermissionDenied)
	assert.ErrorIs(t, svc.ChangePassword(ctx, &m, "missing", "", "xyz98765"), domain.ErrNotFound)
}

func TestListActorsFallsBackWhenStoreDown(t *testing.T) {
	var fallbacks []string
	svc, err := NewActorService(downActorStore{NewMemoryActorStore()}, nil, WithDegradedHook(func(op string) { fallbacks = append(fallbacks, op) }))
	require.NoError(t, err)

	list, err := svc.ListActors(context.Background())
	require.NoError(t, err)
	assert.True(t, list.Degraded)
	assert.Len(t, list.Actors, len(domain.Roles))
	assert.Equal(t, []string{"list_actors"}, fallbacks)

	demo := list.Actors[0]
	got, err := svc.GetActor(context.Background(), demo.ID)
	require.NoError(t, err)
	assert.Equal(t, demo.Email, got.Email)

	_, err = svc.GetActor(context.Background(), "unknown")
	assert.True(t, errors.Is(err, domain.ErrBackendUnavailable))
}

func TestParseActorsYAMLRejectsUnknownRole(t *testing.T) {
	_, err := ParseActorsYAML([]byte("actors:\n  - id: a\n    email: a@b.c\n    role: pirate\n"))
	assert.Error(t, err)
}
