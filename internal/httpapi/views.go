package httpapi

import (
	"context"
	"strings"
	"time"

	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
)

type actorView struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        domain.Role `json:"role"`
	IsActive    bool        `json:"is_active"`
	IsMaster    bool        `json:"is_master"`
	CreatedAt   time.Time   `json:"created_at"`
}

// viewer renders records for one caller, applying the disclosure rules.
// Assessor lookups are cached for the lifetime of the request.
type viewer struct {
	ctx    context.Context
	api    *API
	actor  *domain.Actor
	lookup map[string]*domain.Actor
}

func (a *API) viewerFor(ctx context.Context, actor *domain.Actor) *viewer {
	return &viewer{ctx: ctx, api: a, actor: actor, lookup: make(map[string]*domain.Actor)}
}

func (v *viewer) self(id string) bool { return v.actor != nil && v.actor.ID == id }

func (v *viewer) actorView(act domain.Actor) actorView {
	subject := auth.SubjectFromActor(&act)
	email := v.api.policy.DisplayEmail(v.actor, subject)
	if v.self(act.ID) {
		email = act.Email
	}
	return actorView{
		ID:          act.ID,
		Email:       email,
		DisplayName: v.api.policy.DisplayName(v.actor, subject),
		Role:        act.Role,
		IsActive:    act.IsActive,
		IsMaster:    act.IsMaster,
		CreatedAt:   act.CreatedAt,
	}
}

func (v *viewer) actors(list []domain.Actor) []actorView {
	out := make([]actorView, 0, len(list))
	for _, act := range list {
		out = append(out, v.actorView(act))
	}
	return out
}

func (v *viewer) find(id string) *domain.Actor {
	if id == "" {
		return nil
	}
	if act, ok := v.lookup[id]; ok {
		return act
	}
	var found *domain.Actor
	if act, err := v.api.actors.GetActor(v.ctx, id); err == nil {
		found = &act
	}
	v.lookup[id] = found
	return found
}

// name resolves the name shown for an actor recorded on a target. A known
// actor is rendered from its current record, so a nameless actor falls back
// to the e-mail rules. The recorded name only stands in when the actor cannot
// be loaded, and an address stored there is treated as an e-mail.
func (v *viewer) name(actorID, recorded string) string {
	if actorID == "" && recorded == "" {
		return ""
	}
	if act := v.find(actorID); act != nil {
		return v.api.policy.DisplayName(v.actor, auth.SubjectFromActor(act))
	}
	subject := &auth.Subject{AssessedByName: recorded}
	if strings.Contains(recorded, "@") {
		subject = &auth.Subject{Email: recorded}
	}
	return v.api.policy.DisplayName(v.actor, subject)
}

func (v *viewer) assessment(a domain.Assessment) domain.Assessment {
	if a.HasAssessor() {
		a.AssessedByName = v.name(a.AssessedByActorID, a.AssessedByName)
	}
	if a.StatusUpdatedByActorID != "" {
		a.StatusUpdatedByName = v.name(a.StatusUpdatedByActorID, a.StatusUpdatedByName)
	}
	return a
}

func (v *viewer) person(p domain.Person) domain.Person {
	p.Assessment = v.assessment(p.Assessment)
	return p
}

func (v *viewer) persons(list []domain.Person) []domain.Person {
	out := make([]domain.Person, 0, len(list))
	for _, p := range list {
		out = append(out, v.person(p))
	}
	return out
}

func (v *viewer) organization(o domain.Organization) domain.Organization {
	o.Assessment = v.assessment(o.Assessment)
	return o
}

func (v *viewer) organizations(list []domain.Organization) []domain.Organization {
	out := make([]domain.Organization, 0, len(list))
	for _, o := range list {
		out = append(out, v.organization(o))
	}
	return out
}

func (v *viewer) incident(in domain.IncidentEntry) domain.IncidentEntry {
	in.Assessment = v.assessment(in.Assessment)
	return in
}

func (v *viewer) incidents(list []domain.IncidentEntry) []domain.IncidentEntry {
	out := make([]domain.IncidentEntry, 0, len(list))
	for _, in := range list {
		out = append(out, v.incident(in))
	}
	return out
}

func (v *viewer) history(list []domain.AssessmentHistoryRecord) []domain.AssessmentHistoryRecord {
	out := make([]domain.AssessmentHistoryRecord, 0, len(list))
	for _, rec := range list {
		rec.ActorName = v.name(rec.ActorID, rec.ActorName)
		out = append(out, rec)
	}
	return out
}

func (v *viewer) responses(rs domain.Responses) domain.Responses {
	list := rs.List()
	for i, r := range list {
		list[i].WitnessName = v.name(r.WitnessID, r.WitnessName)
	}
	return domain.NewResponses(list...)
}

func (v *viewer) hearing(h domain.Hearing) domain.Hearing {
	h.Responses = v.responses(h.Responses)
	return h
}

func (v *viewer) hearings(list []domain.Hearing) []domain.Hearing {
	out := make([]domain.Hearing, 0, len(list))
	for _, h := range list {
		out = append(out, v.hearing(h))
	}
	return out
}
