package casefile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
	"bureau.org/internal/ids"
	"bureau.org/internal/stream"
)

// HearingInput is the payload for OpenHearing.
type HearingInput struct {
	IncidentID string
	Question   string
	WitnessIDs []string
}

func incidentRef(id string) domain.TargetRef {
	return domain.TargetRef{Kind: domain.TargetIncident, ID: id}
}

// OpenHearing starts a hearing on an incident. Requires canManageHearings.
func (s *Service) OpenHearing(ctx context.Context, actor *domain.Actor, in HearingInput) (domain.Hearing, error) {
	if err := s.require(actor, auth.CanManageHearings); err != nil {
		return domain.Hearing{}, err
	}
	in.IncidentID = strings.TrimSpace(in.IncidentID)
	question := strings.TrimSpace(in.Question)
	witnesses := dedupe(in.WitnessIDs)

	var v domain.Violations
	if in.IncidentID == "" {
		v.Add("incident_id", "is required")
	} else if _, err := s.store.GetIncident(ctx, in.IncidentID); err != nil {
		if err := mustExist(&v, "incident_id", err); err != nil {
			return domain.Hearing{}, err
		}
	}
	if question == "" {
		v.Add("question", "is required")
	}
	if len(witnesses) == 0 {
		v.Add("witness_ids", "at least one witness is required")
	}
	if err := v.Err(); err != nil {
		return domain.Hearing{}, err
	}

	now := s.clock()
	h := domain.Hearing{
		ID:         ids.NewAt(now),
		IncidentID: in.IncidentID,
		CreatedBy:  actor.ID,
		WitnessIDs: witnesses,
		Question:   question,
		Status:     domain.HearingActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateHearing(ctx, h); err != nil {
		return domain.Hearing{}, err
	}
	s.publish(ctx, stream.HearingOpened, incidentRef(h.IncidentID), actor, h)
	return h, nil
}

// GetHearing loads one hearing.
func (s *Service) GetHearing(ctx context.Context, actor *domain.Actor, id string) (domain.Hearing, error) {
	if err := authenticated(actor); err != nil {
		return domain.Hearing{}, err
	}
	return s.store.GetHearing(ctx, id)
}

// ListHearings lists the hearings of an incident.
func (s *Service) ListHearings(ctx context.Context, actor *domain.Actor, incidentID string) ([]domain.Hearing, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	return s.store.ListHearings(ctx, incidentID)
}

// SubmitResponse records actor's answer on an active hearing. Only named
// witnesses may answer; answering again replaces the earlier answer.
func (s *Service) SubmitResponse(ctx context.Context, actor *domain.Actor, hearingID, agreement, comment string) (domain.Hearing, error) {
	if err := authenticated(actor); err != nil {
		return domain.Hearing{}, err
	}
	ag := domain.Agreement(strings.ToLower(strings.TrimSpace(agreement)))
	if !ag.IsValid() {
		return domain.Hearing{}, domain.NewValidationError("agreement", "must be agree or disagree")
	}
	h, err := s.store.GetHearing(ctx, hearingID)
	if err != nil {
		return domain.Hearing{}, err
	}
	if !h.HasWitness(actor.ID) {
		return domain.Hearing{}, fmt.Errorf("%w: not a witness of this hearing", domain.ErrPermissionDenied)
	}
	if h.Status != domain.HearingActive {
		return domain.Hearing{}, fmt.Errorf("%w: hearing is closed", domain.ErrConflict)
	}
	r := domain.Response{
		WitnessID:   actor.ID,
		WitnessName: actorName(actor),
		Agreement:   ag,
		Comment:     strings.TrimSpace(comment),
		CreatedAt:   s.clock(),
	}
	if err := s.store.UpsertHearingResponse(ctx, h.ID, r); err != nil {
		return domain.Hearing{}, err
	}
	h.Responses = h.Responses.Clone()
	h.Responses.Upsert(r)
	h.UpdatedAt = r.CreatedAt
	s.publish(ctx, stream.HearingResponse, incidentRef(h.IncidentID), actor, r)
	return h, nil
}

// CloseHearing ends a hearing. Closed hearings cannot be reopened.
func (s *Service) CloseHearing(ctx context.Context, actor *domain.Actor, id string) (domain.Hearing, error) {
	if err := s.require(actor, auth.CanManageHearings); err != nil {
		return domain.Hearing{}, err
	}
	h, err := s.store.GetHearing(ctx, id)
	if err != nil {
		return domain.Hearing{}, err
	}
	if h.Status == domain.HearingClosed {
		return domain.Hearing{}, fmt.Errorf("%w: hearing already closed", domain.ErrConflict)
	}
	now := s.clock()
	h.Status = domain.HearingClosed
	h.ClosedAt = &now
	h.UpdatedAt = now
	if err := s.store.UpdateHearing(ctx, h); err != nil {
		return domain.Hearing{}, err
	}
	s.publish(ctx, stream.HearingClosed, incidentRef(h.IncidentID), actor, h)
	return h, nil
}

// RequestStatements asks each witness for a written statement on an
// incident. Witnesses that already have a statement keep it. Requires
// canManageHearings.
func (s *Service) RequestStatements(ctx context.Context, actor *domain.Actor, incidentID string, witnessIDs []string, request string) ([]domain.WitnessStatement, error) {
	if err := s.require(actor, auth.CanManageHearings); err != nil {
		return nil, err
	}
	witnesses := dedupe(witnessIDs)
	var v domain.Violations
	if _, err := s.store.GetIncident(ctx, incidentID); err != nil {
		if err := mustExist(&v, "incident_id", err); err != nil {
			return nil, err
		}
	}
	if len(witnesses) == 0 {
		v.Add("witness_ids", "at least one witness is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	existing, err := s.store.ListStatements(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	have := make([]string, 0, len(existing))
	for _, st := range existing {
		have = append(have, st.WitnessID)
	}
	now := s.clock()
	for _, w := range witnesses {
		if slices.Contains(have, w) {
			continue
		}
		st := domain.WitnessStatement{
			ID:           ids.NewAt(now),
			IncidentID:   incidentID,
			WitnessID:    w,
			Status:       domain.StatementPending,
			JudgeRequest: strings.TrimSpace(request),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.CreateStatement(ctx, st); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			return nil, err
		}
		s.publish(ctx, stream.StatementRequested, incidentRef(incidentID), actor, st)
	}
	return s.store.ListStatements(ctx, incidentID)
}

// SubmitStatement stores the witness's account. Only the named witness may submit.
func (s *Service) SubmitStatement(ctx context.Context, actor *domain.Actor, statementID, text string) (domain.WitnessStatement, error) {
	if err := authenticated(actor); err != nil {
		return domain.WitnessStatement{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.WitnessStatement{}, domain.NewValidationError("statement", "is required")
	}
	st, err := s.store.GetStatement(ctx, statementID)
	if err != nil {
		return domain.WitnessStatement{}, err
	}
	if st.WitnessID != actor.ID {
		return domain.WitnessStatement{}, fmt.Errorf("%w: statement belongs to another witness", domain.ErrPermissionDenied)
	}
	now := s.clock()
	st.Statement = text
	st.Status = domain.StatementSubmitted
	st.SubmittedAt = &now
	st.UpdatedAt = now
	if err := s.store.UpdateStatement(ctx, st); err != nil {
		return domain.WitnessStatement{}, err
	}
	s.publish(ctx, stream.StatementSubmitted, incidentRef(st.IncidentID), actor, st)
	return st, nil
}

// StatementComment carries a judge's annotations; nil fields are left untouched.
type StatementComment struct {
	Comment *string
	Request *string
}

// CommentStatement annotates a statement. Requires canManageHearings.
func (s *Service) CommentStatement(ctx context.Context, actor *domain.Actor, statementID string, in StatementComment) (domain.WitnessStatement, error) {
	if err := s.require(actor, auth.CanManageHearings); err != nil {
		return domain.WitnessStatement{}, err
	}
	if in.Comment == nil && in.Request == nil {
		return domain.WitnessStatement{}, domain.NewValidationError("judge_comment", "comment or request is required")
	}
	st, err := s.store.GetStatement(ctx, statementID)
	if err != nil {
		return domain.WitnessStatement{}, err
	}
	if in.Comment != nil {
		st.JudgeComment = strings.TrimSpace(*in.Comment)
	}
	if in.Request != nil {
		st.JudgeRequest = strings.TrimSpace(*in.Request)
	}
	st.UpdatedAt = s.clock()
	if err := s.store.UpdateStatement(ctx, st); err != nil {
		return domain.WitnessStatement{}, err
	}
	s.publish(ctx, stream.StatementCommented, incidentRef(st.IncidentID), actor, st)
	return st, nil
}

// ListStatements lists statements on an incident. Actors who run hearings or
// may view sensitive data see all of them; other actors see only their own.
func (s *Service) ListStatements(ctx context.Context, actor *domain.Actor, incidentID string) ([]domain.WitnessStatement, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	all, err := s.store.ListStatements(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if s.policy.HasPermission(actor, auth.CanManageHearings) || s.policy.HasPermission(actor, auth.CanViewSensitiveData) {
		return all, nil
	}
	own := make([]domain.WitnessStatement, 0, 1)
	for _, st := range all {
		if st.WitnessID == actor.ID {
			own = append(own, st)
		}
	}
	return own, nil
}
