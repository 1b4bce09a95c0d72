package auth

import (
	"sort"

	"bureau.org/internal/domain"
)

// Capability is a named boolean permission granted per role.
type Capability string

const (
	CanAssessDangerLevel     Capability = "canAssessDangerLevel"
	CanOverrideAssessments   Capability = "canOverrideAssessments"
	CanManageStatus          Capability = "canManageStatus"
	CanViewSensitiveData     Capability = "canViewSensitiveData"
	CanImpersonateActors     Capability = "canImpersonateActors"
	CanManageUsers           Capability = "canManageUsers"
	CanManageHearings        Capability = "canManageHearings"
	CanReportIncidents       Capability = "canReportIncidents"
	CanManageEntities        Capability = "canManageEntities"
	CanViewAssessmentHistory Capability = "canViewAssessmentHistory"
	CanManageRoleImages      Capability = "canManageRoleImages"
)

// Capabilities lists every known capability.
var Capabilities = []Capability{
	CanAssessDangerLevel,
	CanOverrideAssessments,
	CanManageStatus,
	CanViewSensitiveData,
	CanImpersonateActors,
	CanManageUsers,
	CanManageHearings,
	CanReportIncidents,
	CanManageEntities,
	CanViewAssessmentHistory,
	CanManageRoleImages,
}

// RoleDefinition describes one role and the capabilities it grants.
type RoleDefinition struct {
	Role         domain.Role         `json:"role"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Capabilities map[Capability]bool `json:"capabilities"`
}

func (d RoleDefinition) clone() RoleDefinition {
	caps := make(map[Capability]bool, len(d.Capabilities))
	for k, v := range d.Capabilities {
		caps[k] = v
	}
	d.Capabilities = caps
	return d
}

// Granted returns the capabilities set to true, sorted.
func (d RoleDefinition) Granted() []Capability {
	out := make([]Capability, 0, len(d.Capabilities))
	for c, ok := range d.Capabilities {
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Registry is the immutable role -> capability table. It is built once and
// shared; nothing it hands out aliases its internal maps.
type Registry struct {
	defs map[domain.Role]RoleDefinition
}

// NewRegistry copies the given definitions into a new registry.
func NewRegistry(defs ...RoleDefinition) *Registry {
	r := &Registry{defs: make(map[domain.Role]RoleDefinition, len(defs))}
	for _, d := range defs {
		r.defs[d.Role] = d.clone()
	}
	return r
}

// Allows reports whether role grants capability. Unknown roles and
// capabilities are denied.
func (r *Registry) Allows(role domain.Role, c Capability) bool {
	if r == nil {
		return false
	}
	d, ok := r.defs[role]
	if !ok {
		return false
	}
	return d.Capabilities[c]
}

// Definition returns a copy of the role's definition.
func (r *Registry) Definition(role domain.Role) (RoleDefinition, bool) {
	d, ok := r.defs[role]
	if !ok {
		return RoleDefinition{}, false
	}
	return d.clone(), true
}

// Definitions returns copies of all definitions ordered by authority.
func (r *Registry) Definitions() []RoleDefinition {
	out := make([]RoleDefinition, 0, len(r.defs))
	for _, role := range domain.Roles {
		if d, ok := r.defs[role]; ok {
			out = append(out, d.clone())
		}
	}
	return out
}

func grant(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(Capabilities))
	for _, c := range Capabilities {
		m[c] = false
	}
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// DefaultRegistry is the bureau's role table.
func DefaultRegistry() *Registry {
	return NewRegistry(
		RoleDefinition{
			Role:         domain.RoleSentinel,
			Title:        "Sentinel",
			Description:  "Bureau administrator with unconditional override.",
			Capabilities: grant(Capabilities...),
		},
		RoleDefinition{
			Role:        domain.RoleHighJudge,
			Title:       "High Judge",
			Description: "Senior judge; may override assessments made by judges.",
			Capabilities: grant(
				CanAssessDangerLevel,
				CanOverrideAssessments,
				CanManageStatus,
				CanViewSensitiveData,
				CanManageHearings,
				CanReportIncidents,
				CanManageEntities,
				CanViewAssessmentHistory,
			),
		},
		RoleDefinition{
			Role:        domain.RoleJudge,
			Title:       "Judge",
			Description: "Assesses incidents and runs hearings.",
			Capabilities: grant(
				CanAssessDangerLevel,
				CanManageStatus,
				CanViewSensitiveData,
				CanManageHearings,
				CanReportIncidents,
				CanManageEntities,
				CanViewAssessmentHistory,
			),
		},
		RoleDefinition{
			Role:        domain.RoleLegalAuthority,
			Title:       "Legal Authority",
			Description: "Reads case files including sensitive identities.",
			Capabilities: grant(
				CanViewSensitiveData,
				CanReportIncidents,
				CanManageEntities,
				CanViewAssessmentHistory,
			),
		},
		RoleDefinition{
			Role:         domain.RoleBountyHunter,
			Title:        "Bounty Hunter",
			Description:  "Field agent maintaining person and organization records.",
			Capabilities: grant(CanReportIncidents, CanManageEntities),
		},
		RoleDefinition{
			Role:         domain.RoleCitizen,
			Title:        "Citizen",
			Description:  "Community member who may report incidents.",
			Capabilities: grant(CanReportIncidents),
		},
	)
}
