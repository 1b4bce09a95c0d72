package casefile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bureau.org/internal/domain"
)

func openIncident(t *testing.T, f *fixture) domain.IncidentEntry {
	t.Helper()
	in, err := f.svc.ReportIncident(context.Background(), citizen, IncidentInput{Handle: "jdoe", Title: "Arson"})
	require.NoError(t, err)
	return in
}

func TestHearingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	incident := openIncident(t, f)
	w1 := mkActor("w1", domain.RoleCitizen)
	w2 := mkActor("w2", domain.RoleBountyHunter)

	_, err := f.svc.OpenHearing(ctx, citizen, HearingInput{IncidentID: incident.ID, Question: "q?", WitnessIDs: []string{w1.ID}})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	h, err := f.svc.OpenHearing(ctx, judge, HearingInput{IncidentID: incident.ID, Question: "Was the fire deliberate?", WitnessIDs: []string{w1.ID, w2.ID, w1.ID}})
	require.NoError(t, err)
	assert.Equal(t, domain.HearingActive, h.Status)
	assert.Equal(t, []string{w1.ID, w2.ID}, h.WitnessIDs)

	_, err = f.svc.SubmitResponse(ctx, w1, h.ID, "agree", "")
	require.NoError(t, err)
	_, err = f.svc.SubmitResponse(ctx, w2, h.ID, "disagree", "I was elsewhere")
	require.NoError(t, err)
	_, err = f.svc.SubmitResponse(ctx, w1, h.ID, "disagree", "on reflection")
	require.NoError(t, err)

	got, err := f.svc.GetHearing(ctx, judge, h.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Responses.Len())
	first := got.Responses.List()[0]
	assert.Equal(t, w1.ID, first.WitnessID)
	assert.Equal(t, domain.AgreementDisagree, first.Agreement)
	assert.Equal(t, "on reflection", first.Comment)
	assert.Equal(t, w1.RealName, first.WitnessName)

	_, err = f.svc.SubmitResponse(ctx, citizen, h.ID, "agree", "")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = f.svc.SubmitResponse(ctx, w1, h.ID, "maybe", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	closed, err := f.svc.CloseHearing(ctx, judge, h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HearingClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = f.svc.SubmitResponse(ctx, w2, h.ID, "agree", "")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.svc.CloseHearing(ctx, judge, h.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	list, err := f.svc.ListHearings(ctx, citizen, incident.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Responses.Len())
}

func TestOpenHearingValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.OpenHearing(context.Background(), judge, HearingInput{IncidentID: "missing"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
}

func TestWitnessStatements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	incident := openIncident(t, f)
	w1 := mkActor("w1", domain.RoleCitizen)
	w2 := mkActor("w2", domain.RoleCitizen)

	list, err := f.svc.RequestStatements(ctx, judge, incident.ID, []string{w1.ID, w2.ID}, "Describe what you saw")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, st := range list {
		assert.Equal(t, domain.StatementPending, st.Status)
	}

	var mine domain.WitnessStatement
	for _, st := range list {
		if st.WitnessID == w1.ID {
			mine = st
		}
	}
	_, err = f.svc.SubmitStatement(ctx, w2, mine.ID, "not mine")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	submitted, err := f.svc.SubmitStatement(ctx, w1, mine.ID, "Smoke from the east wing.")
	require.NoError(t, err)
	assert.Equal(t, domain.StatementSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	again, err := f.svc.RequestStatements(ctx, judge, incident.ID, []string{w1.ID, "w3"}, "")
	require.NoError(t, err)
	require.Len(t, again, 3)
	for _, st := range again {
		if st.WitnessID == w1.ID {
			assert.Equal(t, domain.StatementSubmitted, st.Status, "existing statements are kept")
		}
	}

	comment := "Please name the east wing guard."
	annotated, err := f.svc.CommentStatement(ctx, judge, mine.ID, StatementComment{Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, comment, annotated.JudgeComment)
	_, err = f.svc.CommentStatement(ctx, w1, mine.ID, StatementComment{Comment: &comment})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	own, err := f.svc.ListStatements(ctx, w1, incident.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, w1.ID, own[0].WitnessID)
	all, err := f.svc.ListStatements(ctx, judge, incident.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
