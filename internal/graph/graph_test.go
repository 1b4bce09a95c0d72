package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bureau.org/internal/domain"
)

type call struct {
	cypher string
	params map[string]any
}

func recorder(calls *[]call, err error) Executor {
	return func(_ context.Context, cypher string, params map[string]any) error {
		*calls = append(*calls, call{cypher: cypher, params: params})
		return err
	}
}

func TestUpsertMembershipParams(t *testing.T) {
	var calls []call
	sink := NewSink(recorder(&calls, nil))
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	err := sink.UpsertMembership(context.Background(), domain.Membership{
		ID: "m1", PersonID: "p1", OrganizationID: "o1", Role: "enforcer", IsActive: true, StartDate: &start,
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].cypher, "MEMBER_OF")
	assert.Equal(t, "p1", calls[0].params["person_id"])
	assert.Equal(t, "2025-05-01T00:00:00Z", calls[0].params["since"])
	assert.Nil(t, calls[0].params["until"])
}

func TestRelationshipLifecycle(t *testing.T) {
	var calls []call
	sink := NewSink(recorder(&calls, nil))
	ctx := context.Background()

	require.NoError(t, sink.UpsertRelationship(ctx, domain.OrgRelationship{ID: "r1", SourceOrgID: "a", TargetOrgID: "b", Type: domain.RelationshipHostile}))
	require.NoError(t, sink.RemoveRelationship(ctx, "r1"))
	require.Len(t, calls, 2)
	assert.Equal(t, "hostile", calls[0].params["type"])
	assert.True(t, strings.HasPrefix(calls[1].cypher, "MATCH"))
}

func TestExecutorErrorsAreWrapped(t *testing.T) {
	boom := errors.New("boom")
	var calls []call
	sink := NewSink(recorder(&calls, boom))
	err := sink.RemoveMembership(context.Background(), "m1")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, sink.Close(context.Background()))
}

func TestNopSink(t *testing.T) {
	var s Sink = Nop{}
	assert.NoError(t, s.UpsertMembership(context.Background(), domain.Membership{}))
}
