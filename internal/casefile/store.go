package casefile

import (
	"context"

	"bureau.org/internal/domain"
)

// PersonFilter selects persons by exact-match columns. Zero values match everything.
type PersonFilter struct {
	Handle string
	Status domain.Status
	Limit  int
}

// OrganizationFilter selects organizations.
type OrganizationFilter struct {
	Status domain.Status
	Limit  int
}

// IncidentFilter selects incidents.
type IncidentFilter struct {
	PersonID   string
	ReporterID string
	Status     domain.Status
	Limit      int
}

// MembershipFilter selects memberships of a person, an organization, or both.
type MembershipFilter struct {
	PersonID       string
	OrganizationID string
	ActiveOnly     bool
}

// Store is the persistence contract of the case file. Lists are ordered by
// creation time, oldest first. Missing rows yield domain.ErrNotFound.
type Store interface {
	CreatePerson(ctx context.Context, p domain.Person) error
	GetPerson(ctx context.Context, id string) (domain.Person, error)
	FindPersonByHandle(ctx context.Context, handle string) (domain.Person, error)
	UpdatePerson(ctx context.Context, p domain.Person) error
	ListPersons(ctx context.Context, f PersonFilter) ([]domain.Person, error)

	CreateOrganization(ctx context.Context, o domain.Organization) error
	GetOrganization(ctx context.Context, id string) (domain.Organization, error)
	UpdateOrganization(ctx context.Context, o domain.Organization) error
	ListOrganizations(ctx context.Context, f OrganizationFilter) ([]domain.Organization, error)

	CreateIncident(ctx context.Context, in domain.IncidentEntry) error
	GetIncident(ctx context.Context, id string) (domain.IncidentEntry, error)
	UpdateIncident(ctx context.Context, in domain.IncidentEntry) error
	ListIncidents(ctx context.Context, f IncidentFilter) ([]domain.IncidentEntry, error)

	// GetAssessment returns the assessment block of any assessable target.
	GetAssessment(ctx context.Context, target domain.TargetRef) (domain.Assessment, error)
	// ApplyAssessment stores the danger rating and assessor of a and appends
	// rec in one atomic step. The status block is left untouched. It fails with
	// domain.ErrConflict when the target's current assessor no longer matches
	// expected (nil meaning "never assessed").
	ApplyAssessment(ctx context.Context, target domain.TargetRef, expected *domain.Assessor, a domain.Assessment, rec domain.AssessmentHistoryRecord) error
	// ApplyStatus stores the status block of a and nothing else.
	ApplyStatus(ctx context.Context, target domain.TargetRef, a domain.Assessment) error
	ListHistory(ctx context.Context, target domain.TargetRef) ([]domain.AssessmentHistoryRecord, error)

	CreateMembership(ctx context.Context, m domain.Membership) error
	GetMembership(ctx context.Context, id string) (domain.Membership, error)
	UpdateMembership(ctx context.Context, m domain.Membership) error
	DeleteMembership(ctx context.Context, id string) error
	ListMemberships(ctx context.Context, f MembershipFilter) ([]domain.Membership, error)

	CreateRelationship(ctx context.Context, r domain.OrgRelationship) error
	GetRelationship(ctx context.Context, id string) (domain.OrgRelationship, error)
	UpdateRelationship(ctx context.Context, r domain.OrgRelationship) error
	DeleteRelationship(ctx context.Context, id string) error
	// ListRelationships returns relationships where orgID is source or target.
	ListRelationships(ctx context.Context, orgID string) ([]domain.OrgRelationship, error)

	CreateHearing(ctx context.Context, h domain.Hearing) error
	GetHearing(ctx context.Context, id string) (domain.Hearing, error)
	// UpdateHearing stores status, closed_at and updated_at; responses are
	// written only through UpsertHearingResponse.
	UpdateHearing(ctx context.Context, h domain.Hearing) error
	ListHearings(ctx context.Context, incidentID string) ([]domain.Hearing, error)
	UpsertHearingResponse(ctx context.Context, hearingID string, r domain.Response) error

	CreateStatement(ctx context.Context, s domain.WitnessStatement) error
	GetStatement(ctx context.Context, id string) (domain.WitnessStatement, error)
	UpdateStatement(ctx context.Context, s domain.WitnessStatement) error
	ListStatements(ctx context.Context, incidentID string) ([]domain.WitnessStatement, error)
}

// SameAssessor reports whether the assessor recorded on a matches expected.
func SameAssessor(a domain.Assessment, expected *domain.Assessor) bool {
	cur, ok := a.Assessor()
	if expected == nil {
		return !ok
	}
	return ok && cur.ActorID == expected.ActorID && cur.Role == expected.Role
}
