package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinDangerLevel DangerLevel = 1
	MaxDangerLevel DangerLevel = 6
)

// DangerLevel is the ordinal 1 (lowest) to 6 (highest) risk rating.
type DangerLevel int

func (d DangerLevel) IsValid() bool { return d >= MinDangerLevel && d <= MaxDangerLevel }

// Validate rejects out-of-range levels instead of clamping them.
func (d DangerLevel) Validate() error {
	if !d.IsValid() {
		return NewValidationError("danger_level", fmt.Sprintf("must be between %d and %d (got %d)", MinDangerLevel, MaxDangerLevel, d))
	}
	return nil
}

// Classification is the qualitative verdict attached to an assessment.
type Classification string

const (
	ClassificationHarmless   Classification = "harmless"
	ClassificationSuspicious Classification = "suspicious"
	ClassificationThreat     Classification = "threat"
)

func (c Classification) IsValid() bool {
	switch c {
	case ClassificationHarmless, ClassificationSuspicious, ClassificationThreat:
		return true
	}
	return false
}

// Status is the workflow state of an assessable target.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusReopened  Status = "reopened"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusReopened:
		return true
	}
	return false
}

// OrDefault returns pending for an unset status.
func (s Status) OrDefault() Status {
	if s == "" {
		return StatusPending
	}
	return s
}

// ParseStatus normalizes user input into a Status.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, st.IsValid()
}

// TargetKind names the entity types that carry an assessment.
type TargetKind string

const (
	TargetPerson       TargetKind = "person"
	TargetOrganization TargetKind = "organization"
	TargetIncident     TargetKind = "incident"
)

func (k TargetKind) IsValid() bool {
	switch k {
	case TargetPerson, TargetOrganization, TargetIncident:
		return true
	}
	return false
}

// TargetRef identifies one assessable target.
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func (t TargetRef) String() string { return string(t.Kind) + "/" + t.ID }

// Assessor is the complete (id, name, role) triple of whoever last assessed a target.
type Assessor struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
}

// Assessment holds the danger rating and workflow fields shared by persons,
// organizations and incidents. Assessor fields are either all empty or all set.
type Assessment struct {
	DangerLevel    DangerLevel    `json:"danger_level"`
	Classification Classification `json:"classification,omitempty"`
	Status         Status         `json:"status"`
	Notes          string         `json:"assessment_notes,omitempty"`

	AssessedByActorID string     `json:"assessed_by_actor_id,omitempty"`
	AssessedByName    string     `json:"assessed_by_name,omitempty"`
	AssessedByRole    Role       `json:"assessed_by_role,omitempty"`
	AssessedAt        *time.Time `json:"assessed_at,omitempty"`

	StatusUpdatedByActorID string     `json:"status_updated_by_actor_id,omitempty"`
	StatusUpdatedByName    string     `json:"status_updated_by_name,omitempty"`
	StatusUpdatedByRole    Role       `json:"status_updated_by_role,omitempty"`
	StatusUpdatedAt        *time.Time `json:"status_updated_at,omitempty"`
	StatusNotes            string     `json:"status_notes,omitempty"`
}

// NewAssessment is the state of a freshly created target.
func NewAssessment() Assessment {
	return Assessment{DangerLevel: MinDangerLevel, Status: StatusPending}
}

// HasAssessor reports whether a danger assessment was ever recorded.
func (a Assessment) HasAssessor() bool { return a.AssessedByActorID != "" }

// Assessor returns the assessor triple, or false when unassessed.
func (a Assessment) Assessor() (Assessor, bool) {
	if !a.HasAssessor() {
		return Assessor{}, false
	}
	return Assessor{ActorID: a.AssessedByActorID, Name: a.AssessedByName, Role: a.AssessedByRole}, true
}

// WithAssessor sets the assessor triple in one step.
func (a Assessment) WithAssessor(as Assessor, at time.Time) Assessment {
	a.AssessedByActorID = as.ActorID
	a.AssessedByName = as.Name
	a.AssessedByRole = as.Role
	a.AssessedAt = &at
	return a
}

// WithStatusOf replaces the status block of a with the one held by b.
func (a Assessment) WithStatusOf(b Assessment) Assessment {
	a.Status = b.Status
	a.StatusNotes = b.StatusNotes
	a.StatusUpdatedByActorID = b.StatusUpdatedByActorID
	a.StatusUpdatedByName = b.StatusUpdatedByName
	a.StatusUpdatedByRole = b.StatusUpdatedByRole
	a.StatusUpdatedAt = b.StatusUpdatedAt
	return a
}

// CheckAssessor validates the complete-or-empty assessor invariant.
func (a Assessment) CheckAssessor() error {
	set := 0
	if a.AssessedByActorID != "" {
		set++
	}
	if a.AssessedByName != "" {
		set++
	}
	if a.AssessedByRole != "" {
		set++
	}
	if set != 0 && set != 3 {
		return NewValidationError("assessed_by", "assessor must be complete (id, name, role) or absent")
	}
	return nil
}

// AssessmentHistoryRecord is an immutable log entry written on every assessment change.
type AssessmentHistoryRecord struct {
	ID                     string         `json:"id"`
	Target                 TargetRef      `json:"target"`
	PreviousDangerLevel    DangerLevel    `json:"previous_danger_level,omitempty"`
	NewDangerLevel         DangerLevel    `json:"new_danger_level"`
	PreviousClassification Classification `json:"previous_classification,omitempty"`
	NewClassification      Classification `json:"new_classification,omitempty"`
	ActorID                string         `json:"actor_id"`
	ActorName              string         `json:"actor_name"`
	ActorRole              Role           `json:"actor_role"`
	Notes                  string         `json:"notes,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
}
