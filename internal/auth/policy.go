package auth

import "bureau.org/internal/domain"

// Policy answers authorization questions against a role registry. All of its
// methods are pure functions of their arguments.
type Policy struct {
	registry *Registry
}

// NewPolicy returns a policy over registry, or over DefaultRegistry when nil.
func NewPolicy(registry *Registry) *Policy {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Policy{registry: registry}
}

// Registry exposes the underlying role table.
func (p *Policy) Registry() *Registry { return p.registry }

// HasPermission reports whether actor's role grants c. A nil actor, an
// unknown role or an unknown capability yields false.
func (p *Policy) HasPermission(actor *domain.Actor, c Capability) bool {
	if actor == nil {
		return false
	}
	return p.registry.Allows(actor.Role, c)
}

// CanAssess decides whether actor may change the danger assessment of a
// target last assessed by (assessedByRole, assessedByActorID). Empty values
// mean the target was never assessed.
func (p *Policy) CanAssess(actor *domain.Actor, assessedByRole domain.Role, assessedByActorID string) bool {
	if !p.HasPermission(actor, CanAssessDangerLevel) {
		return false
	}
	unassessed := assessedByRole == "" && assessedByActorID == ""
	switch actor.Role {
	case domain.RoleSentinel:
		return true
	case domain.RoleHighJudge:
		return unassessed || assessedByRole == domain.RoleJudge
	case domain.RoleJudge:
		return unassessed || assessedByActorID == actor.ID
	}
	return false
}

// CanAssessTarget applies CanAssess to the assessor recorded on a.
func (p *Policy) CanAssessTarget(actor *domain.Actor, a domain.Assessment) bool {
	return p.CanAssess(actor, a.AssessedByRole, a.AssessedByActorID)
}

// CanManageStatus reports whether actor may set the workflow status of a target.
// Any of the four statuses may be set; there is no transition table.
func (p *Policy) CanManageStatus(actor *domain.Actor) bool {
	if !p.HasPermission(actor, CanManageStatus) {
		return false
	}
	switch actor.Role {
	case domain.RoleSentinel, domain.RoleHighJudge, domain.RoleJudge:
		return true
	}
	return false
}
