package auth

import (
	"fmt"

	"bureau.org/internal/domain"
)

// SessionIdentity is either a normal session (Original nil) or an
// impersonation, where Active is the impersonated actor and Original the
// master who started it.
type SessionIdentity struct {
	Active   domain.Actor  `json:"active"`
	Original *domain.Actor `json:"original,omitempty"`
}

// Normal returns an identity acting as a itself.
func Normal(a domain.Actor) SessionIdentity {
	return SessionIdentity{Active: a}
}

// Impersonating reports whether another actor is being impersonated.
func (s SessionIdentity) Impersonating() bool { return s.Original != nil }

// Effective is the actor whose permissions apply to requests.
func (s SessionIdentity) Effective() *domain.Actor {
	a := s.Active
	return &a
}

// TrueActor is the actor who authenticated: the original while
// impersonating, the active actor otherwise.
func (s SessionIdentity) TrueActor() *domain.Actor {
	if s.Original != nil {
		o := *s.Original
		return &o
	}
	a := s.Active
	return &a
}

// Impersonate switches the session to target. Only a master actor holding
// canImpersonateActors may do so, judged on the true actor. The original is
// kept when impersonation is re-entered.
func (p *Policy) Impersonate(s SessionIdentity, target domain.Actor) (SessionIdentity, error) {
	actor := s.TrueActor()
	if !actor.IsMaster || !p.HasPermission(actor, CanImpersonateActors) {
		return s, fmt.Errorf("%w: actor %s may not impersonate", domain.ErrPermissionDenied, actor.ID)
	}
	if !target.IsActive {
		return s, domain.NewValidationError("target", "cannot impersonate an inactive actor")
	}
	original := *actor
	if target.ID == original.ID {
		return Normal(original), nil
	}
	return SessionIdentity{Active: target, Original: &original}, nil
}

// StopImpersonation restores the original actor. It is a no-op for a normal session.
func StopImpersonation(s SessionIdentity) SessionIdentity {
	if s.Original == nil {
		return s
	}
	return Normal(*s.Original)
}
