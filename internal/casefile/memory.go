package casefile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bureau.org/internal/domain"
)

// InMemory implements Store with in-process concurrency safety. One lock
// guards every table so an assessment and its history entry land together.
type InMemory struct {
	mu            sync.RWMutex
	persons       map[string]domain.Person
	orgs          map[string]domain.Organization
	incidents     map[string]domain.IncidentEntry
	history       []domain.AssessmentHistoryRecord
	memberships   map[string]domain.Membership
	relationships map[string]domain.OrgRelationship
	hearings      map[string]domain.Hearing
	statements    map[string]domain.WitnessStatement
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		persons:       make(map[string]domain.Person),
		orgs:          make(map[string]domain.Organization),
		incidents:     make(map[string]domain.IncidentEntry),
		memberships:   make(map[string]domain.Membership),
		relationships: make(map[string]domain.OrgRelationship),
		hearings:      make(map[string]domain.Hearing),
		statements:    make(map[string]domain.WitnessStatement),
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
}

func exists(kind, id string) error {
	return fmt.Errorf("%w: %s %s already exists", domain.ErrConflict, kind, id)
}

func byCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if ci.Equal(cj) {
			return id(items[i]) < id(items[j])
		}
		return ci.Before(cj)
	})
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneIncident(in domain.IncidentEntry) domain.IncidentEntry {
	in.WitnessIDs = cloneStrings(in.WitnessIDs)
	return in
}

func cloneHearing(h domain.Hearing) domain.Hearing {
	h.WitnessIDs = cloneStrings(h.WitnessIDs)
	h.Responses = h.Responses.Clone()
	return h
}

// Persons.

func (s *InMemory) CreatePerson(_ context.Context, p domain.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[p.ID]; ok {
		return exists("person", p.ID)
	}
	for _, other := range s.persons {
		if strings.EqualFold(other.Handle, p.Handle) {
			return fmt.Errorf("%w: handle %q already registered", domain.ErrConflict, p.Handle)
		}
	}
	s.persons[p.ID] = p
	return nil
}

func (s *InMemory) GetPerson(_ context.Context, id string) (domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return domain.Person{}, notFound("person", id)
	}
	return p, nil
}

func (s *InMemory) FindPersonByHandle(_ context.Context, handle string) (domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.persons {
		if strings.EqualFold(p.Handle, handle) {
			return p, nil
		}
	}
	return domain.Person{}, notFound("person", handle)
}

func (s *InMemory) UpdatePerson(_ context.Context, p domain.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.persons[p.ID]
	if !ok {
		return notFound("person", p.ID)
	}
	p.Assessment = cur.Assessment
	p.CreatedAt = cur.CreatedAt
	s.persons[p.ID] = p
	return nil
}

func (s *InMemory) ListPersons(_ context.Context, f PersonFilter) ([]domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Person, 0, len(s.persons))
	for _, p := range s.persons {
		if f.Handle != "" && !strings.EqualFold(p.Handle, f.Handle) {
			continue
		}
		if f.Status != "" && p.Assessment.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	byCreated(out, func(p domain.Person) time.Time { return p.CreatedAt }, func(p domain.Person) string { return p.ID })
	return limit(out, f.Limit), nil
}

// Organizations.

func (s *InMemory) CreateOrganization(_ context.Context, o domain.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[o.ID]; ok {
		return exists("organization", o.ID)
	}
	s.orgs[o.ID] = o
	return nil
}

func (s *InMemory) GetOrganization(_ context.Context, id string) (domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[id]
	if !ok {
		return domain.Organization{}, notFound("organization", id)
	}
	return o, nil
}

func (s *InMemory) UpdateOrganization(_ context.Context, o domain.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orgs[o.ID]
	if !ok {
		return notFound("organization", o.ID)
	}
	o.Assessment = cur.Assessment
	o.CreatedAt = cur.CreatedAt
	s.orgs[o.ID] = o
	return nil
}

func (s *InMemory) ListOrganizations(_ context.Context, f OrganizationFilter) ([]domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		if f.Status != "" && o.Assessment.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	byCreated(out, func(o domain.Organization) time.Time { return o.CreatedAt }, func(o domain.Organization) string { return o.ID })
	return limit(out, f.Limit), nil
}

// Incidents.

func (s *InMemory) CreateIncident(_ context.Context, in domain.IncidentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[in.ID]; ok {
		return exists("incident", in.ID)
	}
	if _, ok := s.persons[in.PersonID]; !ok {
		return notFound("person", in.PersonID)
	}
	s.incidents[in.ID] = cloneIncident(in)
	return nil
}

func (s *InMemory) GetIncident(_ context.Context, id string) (domain.IncidentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.incidents[id]
	if !ok {
		return domain.IncidentEntry{}, notFound("incident", id)
	}
	return cloneIncident(in), nil
}

func (s *InMemory) UpdateIncident(_ context.Context, in domain.IncidentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.incidents[in.ID]
	if !ok {
		return notFound("incident", in.ID)
	}
	in.Assessment = cur.Assessment
	in.CreatedAt = cur.CreatedAt
	in.ReporterID = cur.ReporterID
	s.incidents[in.ID] = cloneIncident(in)
	return nil
}

func (s *InMemory) ListIncidents(_ context.Context, f IncidentFilter) ([]domain.IncidentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.IncidentEntry, 0, len(s.incidents))
	for _, in := range s.incidents {
		if f.PersonID != "" && in.PersonID != f.PersonID {
			continue
		}
		if f.ReporterID != "" && in.ReporterID != f.ReporterID {
			continue
		}
		if f.Status != "" && in.Assessment.Status != f.Status {
			continue
		}
		out = append(out, cloneIncident(in))
	}
	byCreated(out, func(in domain.IncidentEntry) time.Time { return in.CreatedAt }, func(in domain.IncidentEntry) string { return in.ID })
	return limit(out, f.Limit), nil
}

// Assessments.

func (s *InMemory) assessmentLocked(target domain.TargetRef) (domain.Assessment, error) {
	switch target.Kind {
	case domain.TargetPerson:
		if p, ok := s.persons[target.ID]; ok {
			return p.Assessment, nil
		}
	case domain.TargetOrganization:
		if o, ok := s.orgs[target.ID]; ok {
			return o.Assessment, nil
		}
	case domain.TargetIncident:
		if in, ok := s.incidents[target.ID]; ok {
			return in.Assessment, nil
		}
	default:
		return domain.Assessment{}, domain.NewValidationError("kind", "unknown target kind")
	}
	return domain.Assessment{}, notFound(string(target.Kind), target.ID)
}

func (s *InMemory) setAssessmentLocked(target domain.TargetRef, a domain.Assessment, at time.Time) {
	switch target.Kind {
	case domain.TargetPerson:
		p := s.persons[target.ID]
		p.Assessment, p.UpdatedAt = a, at
		s.persons[target.ID] = p
	case domain.TargetOrganization:
		o := s.orgs[target.ID]
		o.Assessment, o.UpdatedAt = a, at
		s.orgs[target.ID] = o
	case domain.TargetIncident:
		in := s.incidents[target.ID]
		in.Assessment, in.UpdatedAt = a, at
		s.incidents[target.ID] = in
	}
}

func (s *InMemory) GetAssessment(_ context.Context, target domain.TargetRef) (domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assessmentLocked(target)
}

func (s *InMemory) ApplyAssessment(_ context.Context, target domain.TargetRef, expected *domain.Assessor, a domain.Assessment, rec domain.AssessmentHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.assessmentLocked(target)
	if err != nil {
		return err
	}
	if !SameAssessor(cur, expected) {
		return fmt.Errorf("%w: %s was re-assessed concurrently", domain.ErrConflict, target)
	}
	s.setAssessmentLocked(target, a.WithStatusOf(cur), rec.CreatedAt)
	s.history = append(s.history, rec)
	return nil
}

func (s *InMemory) ApplyStatus(_ context.Context, target domain.TargetRef, a domain.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.assessmentLocked(target)
	if err != nil {
		return err
	}
	at := time.Now().UTC()
	if a.StatusUpdatedAt != nil {
		at = *a.StatusUpdatedAt
	}
	s.setAssessmentLocked(target, cur.WithStatusOf(a), at)
	return nil
}

func (s *InMemory) ListHistory(_ context.Context, target domain.TargetRef) ([]domain.AssessmentHistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AssessmentHistoryRecord
	for _, rec := range s.history {
		if rec.Target == target {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Memberships.

func (s *InMemory) CreateMembership(_ context.Context, m domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[m.ID]; ok {
		return exists("membership", m.ID)
	}
	s.memberships[m.ID] = m
	return nil
}

func (s *InMemory) GetMembership(_ context.Context, id string) (domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[id]
	if !ok {
		return domain.Membership{}, notFound("membership", id)
	}
	return m, nil
}

func (s *InMemory) UpdateMembership(_ context.Context, m domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[m.ID]; !ok {
		return notFound("membership", m.ID)
	}
	s.memberships[m.ID] = m
	return nil
}

func (s *InMemory) DeleteMembership(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[id]; !ok {
		return notFound("membership", id)
	}
	delete(s.memberships, id)
	return nil
}

func (s *InMemory) ListMemberships(_ context.Context, f MembershipFilter) ([]domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Membership
	for _, m := range s.memberships {
		if f.PersonID != "" && m.PersonID != f.PersonID {
			continue
		}
		if f.OrganizationID != "" && m.OrganizationID != f.OrganizationID {
			continue
		}
		if f.ActiveOnly && !m.IsActive {
			continue
		}
		out = append(out, m)
	}
	byCreated(out, func(m domain.Membership) time.Time { return m.CreatedAt }, func(m domain.Membership) string { return m.ID })
	return out, nil
}

// Relationships.

func (s *InMemory) CreateRelationship(_ context.Context, r domain.OrgRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relationships[r.ID]; ok {
		return exists("relationship", r.ID)
	}
	s.relationships[r.ID] = r
	return nil
}

func (s *InMemory) GetRelationship(_ context.Context, id string) (domain.OrgRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.relationships[id]
	if !ok {
		return domain.OrgRelationship{}, notFound("relationship", id)
	}
	return r, nil
}

func (s *InMemory) UpdateRelationship(_ context.Context, r domain.OrgRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relationships[r.ID]; !ok {
		return notFound("relationship", r.ID)
	}
	s.relationships[r.ID] = r
	return nil
}

func (s *InMemory) DeleteRelationship(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relationships[id]; !ok {
		return notFound("relationship", id)
	}
	delete(s.relationships, id)
	return nil
}

func (s *InMemory) ListRelationships(_ context.Context, orgID string) ([]domain.OrgRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OrgRelationship
	for _, r := range s.relationships {
		if orgID != "" && r.SourceOrgID != orgID && r.TargetOrgID != orgID {
			continue
		}
		out = append(out, r)
	}
	byCreated(out, func(r domain.OrgRelationship) time.Time { return r.CreatedAt }, func(r domain.OrgRelationship) string { return r.ID })
	return out, nil
}

// Hearings.

func (s *InMemory) CreateHearing(_ context.Context, h domain.Hearing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hearings[h.ID]; ok {
		return exists("hearing", h.ID)
	}
	s.hearings[h.ID] = cloneHearing(h)
	return nil
}

func (s *InMemory) GetHearing(_ context.Context, id string) (domain.Hearing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hearings[id]
	if !ok {
		return domain.Hearing{}, notFound("hearing", id)
	}
	return cloneHearing(h), nil
}

func (s *InMemory) UpdateHearing(_ context.Context, h domain.Hearing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.hearings[h.ID]
	if !ok {
		return notFound("hearing", h.ID)
	}
	cur.Status = h.Status
	cur.ClosedAt = h.ClosedAt
	cur.UpdatedAt = h.UpdatedAt
	s.hearings[h.ID] = cur
	return nil
}

func (s *InMemory) ListHearings(_ context.Context, incidentID string) ([]domain.Hearing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Hearing
	for _, h := range s.hearings {
		if incidentID != "" && h.IncidentID != incidentID {
			continue
		}
		out = append(out, cloneHearing(h))
	}
	byCreated(out, func(h domain.Hearing) time.Time { return h.CreatedAt }, func(h domain.Hearing) string { return h.ID })
	return out, nil
}

func (s *InMemory) UpsertHearingResponse(_ context.Context, hearingID string, r domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hearings[hearingID]
	if !ok {
		return notFound("hearing", hearingID)
	}
	h.Responses = h.Responses.Clone()
	h.Responses.Upsert(r)
	h.UpdatedAt = r.CreatedAt
	s.hearings[hearingID] = h
	return nil
}

// Witness statements.

func (s *InMemory) CreateStatement(_ context.Context, st domain.WitnessStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statements[st.ID]; ok {
		return exists("statement", st.ID)
	}
	for _, other := range s.statements {
		if other.IncidentID == st.IncidentID && other.WitnessID == st.WitnessID {
			return fmt.Errorf("%w: witness %s already has a statement on incident %s", domain.ErrConflict, st.WitnessID, st.IncidentID)
		}
	}
	s.statements[st.ID] = st
	return nil
}

func (s *InMemory) GetStatement(_ context.Context, id string) (domain.WitnessStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statements[id]
	if !ok {
		return domain.WitnessStatement{}, notFound("statement", id)
	}
	return st, nil
}

func (s *InMemory) UpdateStatement(_ context.Context, st domain.WitnessStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statements[st.ID]; !ok {
		return notFound("statement", st.ID)
	}
	s.statements[st.ID] = st
	return nil
}

func (s *InMemory) ListStatements(_ context.Context, incidentID string) ([]domain.WitnessStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.WitnessStatement
	for _, st := range s.statements {
		if incidentID != "" && st.IncidentID != incidentID {
			continue
		}
		out = append(out, st)
	}
	byCreated(out, func(st domain.WitnessStatement) time.Time { return st.CreatedAt }, func(st domain.WitnessStatement) string { return st.ID })
	return out, nil
}
