package domain

import "time"

// Person is an individual known to the bureau, identified by a game handle.
type Person struct {
	ID         string     `json:"id"`
	Handle     string     `json:"handle"`
	RealName   string     `json:"real_name,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Assessment Assessment `json:"assessment"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Organization is a group persons can be members of.
type Organization struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Assessment  Assessment `json:"assessment"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IncidentEntry is a reported incident concerning one person.
type IncidentEntry struct {
	ID          string     `json:"id"`
	PersonID    string     `json:"person_id"`
	ReporterID  string     `json:"reporter_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
	WitnessIDs  []string   `json:"witness_ids,omitempty"`
	Assessment  Assessment `json:"assessment"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Membership relates a person to an organization over a period of time.
type Membership struct {
	ID             string     `json:"id"`
	PersonID       string     `json:"person_id"`
	OrganizationID string     `json:"organization_id"`
	Role           string     `json:"role,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	IsActive       bool       `json:"is_active"`
	LastVerified   *time.Time `json:"last_verified,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RelationshipType classifies the link between two organizations.
type RelationshipType string

const (
	RelationshipAllied     RelationshipType = "allied"
	RelationshipShadow     RelationshipType = "shadow"
	RelationshipHostile    RelationshipType = "hostile"
	RelationshipNeutral    RelationshipType = "neutral"
	RelationshipSuspicious RelationshipType = "suspicious"
)

func (t RelationshipType) IsValid() bool {
	switch t {
	case RelationshipAllied, RelationshipShadow, RelationshipHostile, RelationshipNeutral, RelationshipSuspicious:
		return true
	}
	return false
}

// OrgRelationship links two organizations.
type OrgRelationship struct {
	ID          string           `json:"id"`
	SourceOrgID string           `json:"source_org_id"`
	TargetOrgID string           `json:"target_org_id"`
	Type        RelationshipType `json:"relationship_type"`
	Description string           `json:"description,omitempty"`
	StartDate   *time.Time       `json:"start_date,omitempty"`
	EndDate     *time.Time       `json:"end_date,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
