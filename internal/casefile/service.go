// Package casefile implements the bureau's case file: persons, organizations
// and incidents with their danger assessments, plus memberships,
// relationships, hearings and witness statements.
package casefile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bureau.org/internal/audit"
	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
	"bureau.org/internal/graph"
	"bureau.org/internal/ids"
	"bureau.org/internal/obs"
	"bureau.org/internal/stream"
)

// Service applies the bureau's authorization rules on top of a Store.
type Service struct {
	store  Store
	policy *auth.Policy
	now    func() time.Time
	logger *slog.Logger
	events stream.Publisher
	graph  graph.Sink
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher sends change events to p.
func WithPublisher(p stream.Publisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithGraph projects memberships and relationships into g.
func WithGraph(g graph.Sink) ServiceOption {
	return func(s *Service) {
		if g != nil {
			s.graph = g
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, policy *auth.Policy, opts ...ServiceOption) *Service {
	if policy == nil {
		policy = auth.NewPolicy(nil)
	}
	s := &Service{
		store:  store,
		policy: policy,
		now:    time.Now,
		logger: slog.Default(),
		events: stream.Discard{},
		graph:  graph.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("service", "casefile")
	return s
}

// Policy returns the authorization policy in use.
func (s *Service) Policy() *auth.Policy { return s.policy }

func (s *Service) clock() time.Time { return s.now().UTC() }

func (s *Service) require(actor *domain.Actor, c auth.Capability) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	if !s.policy.HasPermission(actor, c) {
		obs.RecordPermissionDenied(string(c))
		return fmt.Errorf("%w: %s required", domain.ErrPermissionDenied, c)
	}
	return nil
}

func authenticated(actor *domain.Actor) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ string, target domain.TargetRef, actor *domain.Actor, data any) {
	evt := stream.Event{
		Type:       typ,
		TargetKind: string(target.Kind),
		TargetID:   target.ID,
		Timestamp:  s.clock(),
		Data:       data,
	}
	if actor != nil {
		evt.ActorID = actor.ID
	}
	s.events.Publish(evt)
}

func (s *Service) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", "event", event, "err", err)
	}
}

// actorName is the name recorded in assessor and witness fields. Without a
// real name it is the local part of the e-mail, never the address itself.
func actorName(a *domain.Actor) string {
	if n := strings.TrimSpace(a.RealName); n != "" {
		return n
	}
	if local, _, _ := strings.Cut(strings.TrimSpace(a.Email), "@"); local != "" {
		return local
	}
	return auth.UnknownName
}

// Persons.

// PersonInput is the payload for CreatePerson.
type PersonInput struct {
	Handle   string
	RealName string
	Notes    string
}

// PersonPatch carries optional changes to a person.
type PersonPatch struct {
	Handle   *string
	RealName *string
	Notes    *string
}

// CreatePerson registers a person. Requires canManageEntities.
func (s *Service) CreatePerson(ctx context.Context, actor *domain.Actor, in PersonInput) (domain.Person, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.Person{}, err
	}
	in.Handle = strings.TrimSpace(in.Handle)
	if in.Handle == "" {
		return domain.Person{}, domain.NewValidationError("handle", "is required")
	}
	p, err := s.createPerson(ctx, in)
	if err != nil {
		return domain.Person{}, err
	}
	s.publish(ctx, stream.EntityCreated, domain.TargetRef{Kind: domain.TargetPerson, ID: p.ID}, actor, p)
	return p, nil
}

func (s *Service) createPerson(ctx context.Context, in PersonInput) (domain.Person, error) {
	now := s.clock()
	p := domain.Person{
		ID:         ids.NewAt(now),
		Handle:     in.Handle,
		RealName:   strings.TrimSpace(in.RealName),
		Notes:      strings.TrimSpace(in.Notes),
		Assessment: domain.NewAssessment(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreatePerson(ctx, p); err != nil {
		return domain.Person{}, err
	}
	return p, nil
}

// GetPerson loads one person.
func (s *Service) GetPerson(ctx context.Context, actor *domain.Actor, id string) (domain.Person, error) {
	if err := authenticated(actor); err != nil {
		return domain.Person{}, err
	}
	return s.store.GetPerson(ctx, id)
}

// FindPersonByHandle looks a person up by game handle, case-insensitively.
func (s *Service) FindPersonByHandle(ctx context.Context, actor *domain.Actor, handle string) (domain.Person, error) {
	if err := authenticated(actor); err != nil {
		return domain.Person{}, err
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return domain.Person{}, domain.NewValidationError("handle", "is required")
	}
	return s.store.FindPersonByHandle(ctx, handle)
}

// ListPersons lists persons matching f.
func (s *Service) ListPersons(ctx context.Context, actor *domain.Actor, f PersonFilter) ([]domain.Person, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	return s.store.ListPersons(ctx, f)
}

// UpdatePerson merges patch into the stored person. Requires canManageEntities.
func (s *Service) UpdatePerson(ctx context.Context, actor *domain.Actor, id string, patch PersonPatch) (domain.Person, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.Person{}, err
	}
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return domain.Person{}, err
	}
	if patch.Handle != nil {
		h := strings.TrimSpace(*patch.Handle)
		if h == "" {
			return domain.Person{}, domain.NewValidationError("handle", "must not be empty")
		}
		p.Handle = h
	}
	if patch.RealName != nil {
		p.RealName = strings.TrimSpace(*patch.RealName)
	}
	if patch.Notes != nil {
		p.Notes = strings.TrimSpace(*patch.Notes)
	}
	p.UpdatedAt = s.clock()
	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return domain.Person{}, err
	}
	s.publish(ctx, stream.EntityUpdated, domain.TargetRef{Kind: domain.TargetPerson, ID: p.ID}, actor, p)
	return p, nil
}

// Organizations.

// OrganizationInput is the payload for CreateOrganization.
type OrganizationInput struct {
	Name        string
	Description string
}

// OrganizationPatch carries optional changes to an organization.
type OrganizationPatch struct {
	Name        *string
	Description *string
}

// CreateOrganization registers an organization. Requires canManageEntities.
func (s *Service) CreateOrganization(ctx context.Context, actor *domain.Actor, in OrganizationInput) (domain.Organization, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.Organization{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Organization{}, domain.NewValidationError("name", "is required")
	}
	now := s.clock()
	o := domain.Organization{
		ID:          ids.NewAt(now),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Assessment:  domain.NewAssessment(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateOrganization(ctx, o); err != nil {
		return domain.Organization{}, err
	}
	s.publish(ctx, stream.EntityCreated, domain.TargetRef{Kind: domain.TargetOrganization, ID: o.ID}, actor, o)
	return o, nil
}

// GetOrganization loads one organization.
func (s *Service) GetOrganization(ctx context.Context, actor *domain.Actor, id string) (domain.Organization, error) {
	if err := authenticated(actor); err != nil {
		return domain.Organization{}, err
	}
	return s.store.GetOrganization(ctx, id)
}

// ListOrganizations lists organizations matching f.
func (s *Service) ListOrganizations(ctx context.Context, actor *domain.Actor, f OrganizationFilter) ([]domain.Organization, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	return s.store.ListOrganizations(ctx, f)
}

// UpdateOrganization merges patch into the stored organization.
func (s *Service) UpdateOrganization(ctx context.Context, actor *domain.Actor, id string, patch OrganizationPatch) (domain.Organization, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.Organization{}, err
	}
	o, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return domain.Organization{}, err
	}
	if patch.Name != nil {
		n := strings.TrimSpace(*patch.Name)
		if n == "" {
			return domain.Organization{}, domain.NewValidationError("name", "must not be empty")
		}
		o.Name = n
	}
	if patch.Description != nil {
		o.Description = strings.TrimSpace(*patch.Description)
	}
	o.UpdatedAt = s.clock()
	if err := s.store.UpdateOrganization(ctx, o); err != nil {
		return domain.Organization{}, err
	}
	s.publish(ctx, stream.EntityUpdated, domain.TargetRef{Kind: domain.TargetOrganization, ID: o.ID}, actor, o)
	return o, nil
}

// Incidents.

// IncidentInput is the payload for ReportIncident. The subject is named by
// PersonID or, when unknown to the bureau, by Handle.
type IncidentInput struct {
	PersonID    string
	Handle      string
	Title       string
	Description string
	Location    string
	OccurredAt  *time.Time
	WitnessIDs  []string
}

// IncidentPatch carries optional changes to an incident.
type IncidentPatch struct {
	Title       *string
	Description *string
	Location    *string
	OccurredAt  *time.Time
	WitnessIDs  *[]string
}

// ReportIncident files an incident against a person, creating the person
// from Handle when no such person exists yet. Requires canReportIncidents.
func (s *Service) ReportIncident(ctx context.Context, actor *domain.Actor, in IncidentInput) (domain.IncidentEntry, error) {
	if err := s.require(actor, auth.CanReportIncidents); err != nil {
		return domain.IncidentEntry{}, err
	}
	in.PersonID = strings.TrimSpace(in.PersonID)
	in.Handle = strings.TrimSpace(in.Handle)
	in.Title = strings.TrimSpace(in.Title)

	var v domain.Violations
	if in.Title == "" {
		v.Add("title", "is required")
	}
	if in.PersonID == "" && in.Handle == "" {
		v.Add("person", "person_id or handle is required")
	}
	if err := v.Err(); err != nil {
		return domain.IncidentEntry{}, err
	}

	person, err := s.resolvePerson(ctx, actor, in.PersonID, in.Handle)
	if err != nil {
		return domain.IncidentEntry{}, err
	}

	now := s.clock()
	incident := domain.IncidentEntry{
		ID:          ids.NewAt(now),
		PersonID:    person.ID,
		ReporterID:  actor.ID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		OccurredAt:  in.OccurredAt,
		WitnessIDs:  dedupe(in.WitnessIDs),
		Assessment:  domain.NewAssessment(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateIncident(ctx, incident); err != nil {
		return domain.IncidentEntry{}, err
	}
	s.logger.InfoContext(ctx, "incident reported", "incident_id", incident.ID, "person_id", person.ID, "reporter_id", actor.ID)
	s.publish(ctx, stream.IncidentReported, domain.TargetRef{Kind: domain.TargetIncident, ID: incident.ID}, actor, incident)
	return incident, nil
}

func (s *Service) resolvePerson(ctx context.Context, actor *domain.Actor, personID, handle string) (domain.Person, error) {
	if personID != "" {
		p, err := s.store.GetPerson(ctx, personID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Person{}, domain.NewValidationError("person_id", "unknown person")
		}
		return p, err
	}
	p, err := s.store.FindPersonByHandle(ctx, handle)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Person{}, err
	}
	p, err = s.createPerson(ctx, PersonInput{Handle: handle})
	if errors.Is(err, domain.ErrConflict) {
		// Another report created the same handle first.
		return s.store.FindPersonByHandle(ctx, handle)
	}
	if err != nil {
		return domain.Person{}, err
	}
	s.logger.InfoContext(ctx, "person created from incident report", "person_id", p.ID, "handle", p.Handle)
	s.publish(ctx, stream.EntityCreated, domain.TargetRef{Kind: domain.TargetPerson, ID: p.ID}, actor, p)
	return p, nil
}

// GetIncident loads one incident.
func (s *Service) GetIncident(ctx context.Context, actor *domain.Actor, id string) (domain.IncidentEntry, error) {
	if err := authenticated(actor); err != nil {
		return domain.IncidentEntry{}, err
	}
	return s.store.GetIncident(ctx, id)
}

// ListIncidents lists incidents matching f.
func (s *Service) ListIncidents(ctx context.Context, actor *domain.Actor, f IncidentFilter) ([]domain.IncidentEntry, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	return s.store.ListIncidents(ctx, f)
}

// UpdateIncident merges patch into an incident. The reporter may edit their
// own report; anyone else needs canManageEntities.
func (s *Service) UpdateIncident(ctx context.Context, actor *domain.Actor, id string, patch IncidentPatch) (domain.IncidentEntry, error) {
	if err := authenticated(actor); err != nil {
		return domain.IncidentEntry{}, err
	}
	in, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return domain.IncidentEntry{}, err
	}
	if in.ReporterID != actor.ID {
		if err := s.require(actor, auth.CanManageEntities); err != nil {
			return domain.IncidentEntry{}, err
		}
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return domain.IncidentEntry{}, domain.NewValidationError("title", "must not be empty")
		}
		in.Title = t
	}
	if patch.Description != nil {
		in.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Location != nil {
		in.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.OccurredAt != nil {
		in.OccurredAt = patch.OccurredAt
	}
	if patch.WitnessIDs != nil {
		in.WitnessIDs = dedupe(*patch.WitnessIDs)
	}
	in.UpdatedAt = s.clock()
	if err := s.store.UpdateIncident(ctx, in); err != nil {
		return domain.IncidentEntry{}, err
	}
	s.publish(ctx, stream.EntityUpdated, domain.TargetRef{Kind: domain.TargetIncident, ID: in.ID}, actor, in)
	return in, nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
