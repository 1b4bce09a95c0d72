package casefile

import (
	"context"
	"fmt"
	"strings"

	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
	"bureau.org/internal/ids"
	"bureau.org/internal/obs"
	"bureau.org/internal/stream"
)

// AssessmentInput is the payload for UpdateAssessment.
type AssessmentInput struct {
	DangerLevel    int
	Classification string
	Notes          string
}

func (in AssessmentInput) validate() (domain.DangerLevel, domain.Classification, error) {
	var v domain.Violations
	level := domain.DangerLevel(in.DangerLevel)
	if !level.IsValid() {
		v.Add("danger_level", fmt.Sprintf("must be between %d and %d (got %d)", domain.MinDangerLevel, domain.MaxDangerLevel, in.DangerLevel))
	}
	class := domain.Classification(strings.ToLower(strings.TrimSpace(in.Classification)))
	if class != "" && !class.IsValid() {
		v.Add("classification", "must be one of harmless, suspicious, threat")
	}
	return level, class, v.Err()
}

func validTarget(target domain.TargetRef) error {
	var v domain.Violations
	if !target.Kind.IsValid() {
		v.Add("kind", "must be person, organization or incident")
	}
	if strings.TrimSpace(target.ID) == "" {
		v.Add("id", "is required")
	}
	return v.Err()
}

// UpdateAssessment records a new danger level on target, and a new
// classification when one is given; an empty classification keeps the current one.
// The actor must pass CanAssess against the assessor currently on record; if
// that assessor changes before the write lands, the store rejects it with
// domain.ErrConflict. The assessment and its history entry are stored together.
func (s *Service) UpdateAssessment(ctx context.Context, actor *domain.Actor, target domain.TargetRef, in AssessmentInput) (domain.Assessment, error) {
	if err := authenticated(actor); err != nil {
		return domain.Assessment{}, err
	}
	if err := validTarget(target); err != nil {
		return domain.Assessment{}, err
	}
	level, class, err := in.validate()
	if err != nil {
		return domain.Assessment{}, err
	}

	current, err := s.store.GetAssessment(ctx, target)
	if err != nil {
		return domain.Assessment{}, err
	}
	if class == "" {
		class = current.Classification
	}
	if !s.policy.CanAssessTarget(actor, current) {
		obs.RecordPermissionDenied(string(auth.CanAssessDangerLevel))
		return domain.Assessment{}, fmt.Errorf("%w: %s may not assess %s", domain.ErrPermissionDenied, actor.Role, target)
	}
	var expected *domain.Assessor
	if as, ok := current.Assessor(); ok {
		expected = &as
	}

	now := s.clock()
	by := domain.Assessor{ActorID: actor.ID, Name: actorName(actor), Role: actor.Role}
	next := current.WithAssessor(by, now)
	next.DangerLevel = level
	next.Classification = class
	next.Notes = strings.TrimSpace(in.Notes)

	rec := domain.AssessmentHistoryRecord{
		ID:                     ids.NewAt(now),
		Target:                 target,
		PreviousDangerLevel:    current.DangerLevel,
		NewDangerLevel:         level,
		PreviousClassification: current.Classification,
		NewClassification:      class,
		ActorID:                by.ActorID,
		ActorName:              by.Name,
		ActorRole:              by.Role,
		Notes:                  next.Notes,
		CreatedAt:              now,
	}
	if err := s.store.ApplyAssessment(ctx, target, expected, next, rec); err != nil {
		return domain.Assessment{}, err
	}

	obs.RecordAssessment(string(actor.Role))
	s.logger.InfoContext(ctx, "assessment updated", "target", target.String(), "actor_id", actor.ID, "danger_level", int(level), "classification", string(class))
	s.audit(ctx, "assessment.updated", map[string]any{
		"target":         target.String(),
		"previous_level": int(current.DangerLevel),
		"new_level":      int(level),
		"classification": string(class),
	})
	s.publish(ctx, stream.AssessmentUpdated, target, actor, next)
	return next, nil
}

// SetStatus moves target to status. Any of the four statuses may be set by
// an actor passing CanManageStatus. notes belong to this change only and
// never touch the assessor's notes.
func (s *Service) SetStatus(ctx context.Context, actor *domain.Actor, target domain.TargetRef, status, notes string) (domain.Assessment, error) {
	if err := authenticated(actor); err != nil {
		return domain.Assessment{}, err
	}
	if err := validTarget(target); err != nil {
		return domain.Assessment{}, err
	}
	st, ok := domain.ParseStatus(status)
	if !ok {
		return domain.Assessment{}, domain.NewValidationError("status", "must be one of pending, confirmed, rejected, reopened")
	}
	if !s.policy.CanManageStatus(actor) {
		obs.RecordPermissionDenied(string(auth.CanManageStatus))
		return domain.Assessment{}, fmt.Errorf("%w: %s may not manage status", domain.ErrPermissionDenied, actor.Role)
	}
	current, err := s.store.GetAssessment(ctx, target)
	if err != nil {
		return domain.Assessment{}, err
	}

	now := s.clock()
	next := current
	previous := current.Status.OrDefault()
	next.Status = st
	next.StatusNotes = strings.TrimSpace(notes)
	next.StatusUpdatedByActorID = actor.ID
	next.StatusUpdatedByName = actorName(actor)
	next.StatusUpdatedByRole = actor.Role
	next.StatusUpdatedAt = &now
	if err := s.store.ApplyStatus(ctx, target, next); err != nil {
		return domain.Assessment{}, err
	}

	s.audit(ctx, "status.updated", map[string]any{
		"target":   target.String(),
		"previous": string(previous),
		"status":   string(st),
	})
	s.publish(ctx, stream.StatusUpdated, target, actor, next)
	return next, nil
}

// History returns the assessment history of target, oldest first.
// Requires canViewAssessmentHistory.
func (s *Service) History(ctx context.Context, actor *domain.Actor, target domain.TargetRef) ([]domain.AssessmentHistoryRecord, error) {
	if err := s.require(actor, auth.CanViewAssessmentHistory); err != nil {
		return nil, err
	}
	if err := validTarget(target); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAssessment(ctx, target); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, target)
}
