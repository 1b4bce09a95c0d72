package casefile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
	"bureau.org/internal/stream"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []stream.Event
}

func (p *recordingPublisher) Publish(evt stream.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *InMemory
	events *recordingPublisher
	now    time.Time
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		store:  NewInMemory(),
		events: &recordingPublisher{},
		now:    time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}
	opts = append([]ServiceOption{WithClock(clock), WithPublisher(f.events)}, opts...)
	f.svc = NewService(f.store, auth.NewPolicy(nil), opts...)
	return f
}

func mkActor(id string, role domain.Role) *domain.Actor {
	return &domain.Actor{ID: id, Email: id + "@bureau.example", RealName: "Agent " + id, Role: role, IsActive: true}
}

var (
	sentinel  = mkActor("sentinel", domain.RoleSentinel)
	highJudge = mkActor("hj", domain.RoleHighJudge)
	judge     = mkActor("j1", domain.RoleJudge)
	judge2    = mkActor("j2", domain.RoleJudge)
	hunter    = mkActor("bh", domain.RoleBountyHunter)
	citizen   = mkActor("cit", domain.RoleCitizen)
)

func TestReportIncidentCreatesUnknownPerson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	incident, err := f.svc.ReportIncident(ctx, citizen, IncidentInput{Handle: "jdoe", Title: "Griefing at spawn"})
	require.NoError(t, err)

	person, err := f.svc.FindPersonByHandle(ctx, citizen, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, person.ID, incident.PersonID)
	assert.Equal(t, domain.StatusPending, person.Assessment.Status)
	assert.Equal(t, domain.MinDangerLevel, person.Assessment.DangerLevel)
	assert.Equal(t, domain.StatusPending, incident.Assessment.Status)
	assert.Equal(t, domain.DangerLevel(1), incident.Assessment.DangerLevel)
	assert.Equal(t, citizen.ID, incident.ReporterID)

	again, err := f.svc.ReportIncident(ctx, citizen, IncidentInput{Handle: "JDoe", Title: "Again"})
	require.NoError(t, err)
	assert.Equal(t, person.ID, again.PersonID)

	persons, err := f.svc.ListPersons(ctx, citizen, PersonFilter{})
	require.NoError(t, err)
	assert.Len(t, persons, 1)
	assert.Equal(t, []string{stream.EntityCreated, stream.IncidentReported, stream.IncidentReported}, f.events.types())
}

func TestReportIncidentValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ReportIncident(context.Background(), citizen, IncidentInput{})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)

	_, err = f.svc.ReportIncident(context.Background(), nil, IncidentInput{Handle: "x", Title: "y"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.svc.ReportIncident(context.Background(), citizen, IncidentInput{PersonID: "missing", Title: "y"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestJudgeAssessesThenConfirms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	incident, err := f.svc.ReportIncident(ctx, citizen, IncidentInput{Handle: "jdoe", Title: "Theft"})
	require.NoError(t, err)
	target := domain.TargetRef{Kind: domain.TargetIncident, ID: incident.ID}

	a, err := f.svc.UpdateAssessment(ctx, judge, target, AssessmentInput{DangerLevel: 5, Classification: "threat", Notes: "repeat offender"})
	require.NoError(t, err)
	assert.Equal(t, domain.DangerLevel(5), a.DangerLevel)
	assert.Equal(t, domain.ClassificationThreat, a.Classification)
	as, ok := a.Assessor()
	require.True(t, ok)
	assert.Equal(t, domain.Assessor{ActorID: judge.ID, Name: judge.RealName, Role: domain.RoleJudge}, as)
	require.NotNil(t, a.AssessedAt)

	a, err = f.svc.SetStatus(ctx, judge, target, "confirmed", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, a.Status)
	assert.Equal(t, judge.ID, a.StatusUpdatedByActorID)
	assert.Equal(t, domain.DangerLevel(5), a.DangerLevel)

	stored, err := f.svc.GetIncident(ctx, citizen, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Assessment.Status)
	assert.Equal(t, "repeat offender", stored.Assessment.Notes)

	history, err := f.svc.History(ctx, judge, target)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DangerLevel(1), history[0].PreviousDangerLevel)
	assert.Equal(t, domain.DangerLevel(5), history[0].NewDangerLevel)
	assert.Equal(t, judge.ID, history[0].ActorID)
}

func TestLevelOnlyAssessmentKeepsClassification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	incident, err := f.svc.ReportIncident(ctx, citizen, IncidentInput{Handle: "jdoe", Title: "Vandalism"})
	require.NoError(t, err)
	target := domain.TargetRef{Kind: domain.TargetIncident, ID: incident.ID}

	a, err := f.svc.UpdateAssessment(ctx, judge, target, AssessmentInput{DangerLevel: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.DangerLevel(4), a.DangerLevel)
	assert.Empty(t, a.Classification)

	_, err = f.svc.UpdateAssessment(ctx, judge, target, AssessmentInput{DangerLevel: 5, Classification: "Suspicious"})
	require.NoError(t, err)
	a, err = f.svc.UpdateAssessment(ctx, judge, target, AssessmentInput{DangerLevel: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationSuspicious, a.Classification)

	history, err := f.svc.History(ctx, judge, target)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ClassificationSuspicious, history[2].PreviousClassification)
	assert.Equal(t, domain.ClassificationSuspicious, history[2].NewClassification)
	assert.Equal(t, domain.DangerLevel(2), history[2].NewDangerLevel)

	_, err = f.svc.UpdateAssessment(ctx, judge, target, AssessmentInput{DangerLevel: 3, Classification: "bogus"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "classification", ve.Errors[0].Field)
}

func TestNamelessAssessorRecordedWithoutAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nameless := &domain.Actor{ID: "j9", Email: "quiet.judge@bureau.example", Role: domain.RoleJudge, IsActive: true}
	p, err := f.svc.CreatePerson(ctx, hunter, PersonInput{Handle: "ghost"})
	require.NoError(t, err)
	target := domain.TargetRef{Kind: domain.TargetPerson, ID: p.ID}

	a, err := f.svc.UpdateAssessment(ctx, nameless, target, AssessmentInput{DangerLevel: 2})
	require.NoError(t, err)
	assert.Equal(t, "quiet.judge", a.AssessedByName)
	a, err = f.svc.SetStatus(ctx, nameless, target, "rejected", "")
	require.NoError(t, err)
	assert.Equal(t, "quiet.judge", a.StatusUpdatedByName)

	history, err := f.svc.History(ctx, sentinel, target)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "quiet.judge", history[0].ActorName)
}

func TestStatusNotesKeepAssessorNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreatePerson(ctx, hunter, PersonInput{Handle: "drifter"})
	require.NoError(t, err)
	target := domain.TargetRef{Kind: domain.TargetPerson, ID: p.ID}

	_, err = f.svc.UpdateAssessment(ctx, judge, target, AssessmentInput{DangerLevel: 3, Notes: "seen near the docks"})
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, judge, target, "confirmed", "after hearing")
	require.NoError(t, err)

	stored, err := f.svc.GetPerson(ctx, judge, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "seen near the docks", stored.Assessment.Notes)
	assert.Equal(t, "after hearing", stored.Assessment.StatusNotes)
	assert.Equal(t, domain.StatusConfirmed, stored.Assessment.Status)
}

// statusRaceStore lets a status change land between the service's read and write.
type statusRaceStore struct {
	*InMemory
	once sync.Once
	race func()
}

func (r *statusRaceStore) ApplyAssessment(ctx context.Context, target domain.TargetRef, expected *domain.Assessor, a domain.Assessment, rec domain.AssessmentHistoryRecord) error {
	r.once.Do(r.race)
	return r.InMemory.ApplyAssessment(ctx, target, expected, a, rec)
}

func TestAssessmentDoesNotRevertConcurrentStatus(t *testing.T) {
	mem := NewInMemory()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	person := domain.Person{ID: "p1", Handle: "p1", Assessment: domain.NewAssessment(), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, mem.CreatePerson(context.Background(), person))
	target := domain.TargetRef{Kind: domain.TargetPerson, ID: "p1"}

	rs := &statusRaceStore{InMemory: mem}
	rs.race = func() {
		st := domain.NewAssessment()
		st.Status = domain.StatusRejected
		st.StatusUpdatedByActorID, st.StatusUpdatedByName, st.StatusUpdatedByRole = highJudge.ID, highJudge.RealName, highJudge.Role
		st.StatusUpdatedAt = &now
		require.NoError(t, mem.ApplyStatus(context.Background(), target, st))
	}
	svc := NewService(rs, nil)

	_, err := svc.UpdateAssessment(context.Background(), judge, target, AssessmentInput{DangerLevel: 4, Classification: "threat"})
	require.NoError(t, err)

	stored, err := mem.GetPerson(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.DangerLevel(4), stored.Assessment.DangerLevel)
	assert.Equal(t, domain.StatusRejected, stored.Assessment.Status)
	assert.Equal(t, highJudge.ID, stored.Assessment.StatusUpdatedByActorID)
}

func TestAssessmentAuthorizationFollowsAssessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreatePerson(ctx, hunter, PersonInput{Handle: "shade"})
	require.NoError(t, err)
	target := domain.TargetRef{Kind: domain.TargetPerson, ID: p.ID}
	in := AssessmentInput{DangerLevel: 3, Classification: "suspicious"}

	_, err = f.svc.UpdateAssessment(ctx, hunter, target, in)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = f.svc.UpdateAssessment(ctx, judge, target, in)
	require.NoError(t, err)
	_, err = f.svc.UpdateAssessment(ctx, judge2, target, in)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = f.svc.UpdateAssessment(ctx, judge, target, AssessmentInput{DangerLevel: 4, Classification: "threat"})
	require.NoError(t, err)

	_, err = f.svc.UpdateAssessment(ctx, highJudge, target, in)
	require.NoError(t, err)
	_, err = f.svc.UpdateAssessment(ctx, judge, target, in)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = f.svc.UpdateAssessment(ctx, mkActor("hj2", domain.RoleHighJudge), target, in)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = f.svc.UpdateAssessment(ctx, sentinel, target, AssessmentInput{DangerLevel: 6, Classification: "threat"})
	require.NoError(t, err)

	history, err := f.svc.History(ctx, sentinel, target)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, domain.DangerLevel(3), history[3].PreviousDangerLevel)
	assert.Equal(t, domain.DangerLevel(6), history[3].NewDangerLevel)

	_, err = f.svc.History(ctx, hunter, target)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestUpdateAssessmentRejectsOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreatePerson(ctx, hunter, PersonInput{Handle: "x"})
	require.NoError(t, err)
	target := domain.TargetRef{Kind: domain.TargetPerson, ID: p.ID}

	for _, lvl := range []int{0, 7} {
		_, err := f.svc.UpdateAssessment(ctx, sentinel, target, AssessmentInput{DangerLevel: lvl, Classification: "bogus"})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Len(t, ve.Errors, 2)
	}
	history, err := f.svc.History(ctx, sentinel, target)
	require.NoError(t, err)
	assert.Empty(t, history)
	stored, err := f.svc.GetPerson(ctx, sentinel, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MinDangerLevel, stored.Assessment.DangerLevel)
}

// racingStore lets another judge assess between the service's read and write.
type racingStore struct {
	*InMemory
	once sync.Once
	race func()
}

func (r *racingStore) ApplyAssessment(ctx context.Context, target domain.TargetRef, expected *domain.Assessor, a domain.Assessment, rec domain.AssessmentHistoryRecord) error {
	r.once.Do(r.race)
	return r.InMemory.ApplyAssessment(ctx, target, expected, a, rec)
}

func TestConcurrentReassessmentConflicts(t *testing.T) {
	mem := NewInMemory()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	person := domain.Person{ID: "p1", Handle: "p1", Assessment: domain.NewAssessment(), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, mem.CreatePerson(context.Background(), person))
	target := domain.TargetRef{Kind: domain.TargetPerson, ID: "p1"}

	rs := &racingStore{InMemory: mem}
	rs.race = func() {
		other := domain.NewAssessment().WithAssessor(domain.Assessor{ActorID: judge2.ID, Name: "other", Role: domain.RoleJudge}, now)
		require.NoError(t, mem.ApplyAssessment(context.Background(), target, nil, other, domain.AssessmentHistoryRecord{ID: "h0", Target: target, NewDangerLevel: 1, CreatedAt: now}))
	}
	svc := NewService(rs, nil)

	_, err := svc.UpdateAssessment(context.Background(), judge, target, AssessmentInput{DangerLevel: 2, Classification: "harmless"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	history, err := mem.ListHistory(context.Background(), target)
	require.NoError(t, err)
	assert.Len(t, history, 1, "rejected write must not append history")
	stored, err := mem.GetPerson(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, judge2.ID, stored.Assessment.AssessedByActorID)
}

func TestSetStatusPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.svc.CreateOrganization(ctx, hunter, OrganizationInput{Name: "Crimson Hand"})
	require.NoError(t, err)
	target := domain.TargetRef{Kind: domain.TargetOrganization, ID: o.ID}

	for _, a := range []*domain.Actor{sentinel, highJudge, judge} {
		for _, st := range []string{"confirmed", "rejected", "reopened", "pending"} {
			_, err := f.svc.SetStatus(ctx, a, target, st, "")
			require.NoError(t, err, "%s -> %s", a.Role, st)
		}
	}
	for _, a := range []*domain.Actor{hunter, citizen, mkActor("la", domain.RoleLegalAuthority)} {
		_, err := f.svc.SetStatus(ctx, a, target, "confirmed", "")
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	}
	_, err = f.svc.SetStatus(ctx, judge, target, "archived", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.SetStatus(ctx, judge, domain.TargetRef{Kind: domain.TargetOrganization, ID: "missing"}, "confirmed", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEntityManagementRequiresCapability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreatePerson(ctx, citizen, PersonInput{Handle: "x"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	p, err := f.svc.CreatePerson(ctx, hunter, PersonInput{Handle: "x", RealName: "Xavier"})
	require.NoError(t, err)
	notes := "seen at the docks"
	updated, err := f.svc.UpdatePerson(ctx, hunter, p.ID, PersonPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "Xavier", updated.RealName)
	assert.Equal(t, notes, updated.Notes)

	_, err = f.svc.CreatePerson(ctx, hunter, PersonInput{Handle: "X"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateIncidentByReporterOrManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in, err := f.svc.ReportIncident(ctx, citizen, IncidentInput{Handle: "jdoe", Title: "t"})
	require.NoError(t, err)

	loc := "Harbor"
	got, err := f.svc.UpdateIncident(ctx, citizen, in.ID, IncidentPatch{Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, "Harbor", got.Location)

	_, err = f.svc.UpdateIncident(ctx, mkActor("cit2", domain.RoleCitizen), in.ID, IncidentPatch{Location: &loc})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = f.svc.UpdateIncident(ctx, hunter, in.ID, IncidentPatch{Location: &loc})
	require.NoError(t, err)

	list, err := f.svc.ListIncidents(ctx, citizen, IncidentFilter{ReporterID: citizen.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
