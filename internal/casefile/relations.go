package casefile

import (
	"context"
	"errors"
	"strings"
	"time"

	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
	"bureau.org/internal/ids"
	"bureau.org/internal/stream"
)

// MembershipInput is the payload for AddMembership. IsActive defaults to true.
type MembershipInput struct {
	PersonID       string
	OrganizationID string
	Role           string
	StartDate      *time.Time
	EndDate        *time.Time
	IsActive       *bool
}

// MembershipPatch carries optional changes to a membership.
type MembershipPatch struct {
	Role      *string
	StartDate *time.Time
	EndDate   *time.Time
	IsActive  *bool
}

// RelationshipInput is the payload for AddRelationship.
type RelationshipInput struct {
	SourceOrgID string
	TargetOrgID string
	Type        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

// RelationshipPatch carries optional changes to a relationship.
type RelationshipPatch struct {
	Type        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

func checkPeriod(v *domain.Violations, start, end *time.Time) {
	if start != nil && end != nil && end.Before(*start) {
		v.Add("end_date", "must not precede start_date")
	}
}

// mustExist turns a missing referenced row into a validation error on field.
func mustExist(v *domain.Violations, field string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		v.Add(field, "does not exist")
		return nil
	}
	return err
}

func (s *Service) project(ctx context.Context, op string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		s.logger.WarnContext(ctx, "graph projection failed", "op", op, "err", err)
	}
}

// AddMembership links a person to an organization. Requires canManageEntities.
func (s *Service) AddMembership(ctx context.Context, actor *domain.Actor, in MembershipInput) (domain.Membership, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.Membership{}, err
	}
	in.PersonID = strings.TrimSpace(in.PersonID)
	in.OrganizationID = strings.TrimSpace(in.OrganizationID)

	var v domain.Violations
	if in.PersonID == "" {
		v.Add("person_id", "is required")
	} else if _, err := s.store.GetPerson(ctx, in.PersonID); err != nil {
		if err := mustExist(&v, "person_id", err); err != nil {
			return domain.Membership{}, err
		}
	}
	if in.OrganizationID == "" {
		v.Add("organization_id", "is required")
	} else if _, err := s.store.GetOrganization(ctx, in.OrganizationID); err != nil {
		if err := mustExist(&v, "organization_id", err); err != nil {
			return domain.Membership{}, err
		}
	}
	checkPeriod(&v, in.StartDate, in.EndDate)
	if err := v.Err(); err != nil {
		return domain.Membership{}, err
	}

	now := s.clock()
	m := domain.Membership{
		ID:             ids.NewAt(now),
		PersonID:       in.PersonID,
		OrganizationID: in.OrganizationID,
		Role:           strings.TrimSpace(in.Role),
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if err := s.store.CreateMembership(ctx, m); err != nil {
		return domain.Membership{}, err
	}
	s.project(ctx, "upsert_membership", func(ctx context.Context) error { return s.graph.UpsertMembership(ctx, m) })
	s.publish(ctx, stream.MembershipChanged, domain.TargetRef{Kind: domain.TargetOrganization, ID: m.OrganizationID}, actor, m)
	return m, nil
}

// UpdateMembership merges patch into a membership.
func (s *Service) UpdateMembership(ctx context.Context, actor *domain.Actor, id string, patch MembershipPatch) (domain.Membership, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.Membership{}, err
	}
	m, err := s.store.GetMembership(ctx, id)
	if err != nil {
		return domain.Membership{}, err
	}
	if patch.Role != nil {
		m.Role = strings.TrimSpace(*patch.Role)
	}
	if patch.StartDate != nil {
		m.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		m.EndDate = patch.EndDate
	}
	if patch.IsActive != nil {
		m.IsActive = *patch.IsActive
	}
	var v domain.Violations
	checkPeriod(&v, m.StartDate, m.EndDate)
	if err := v.Err(); err != nil {
		return domain.Membership{}, err
	}
	return s.saveMembership(ctx, actor, m)
}

// VerifyMembership stamps the membership as confirmed now.
func (s *Service) VerifyMembership(ctx context.Context, actor *domain.Actor, id string) (domain.Membership, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.Membership{}, err
	}
	m, err := s.store.GetMembership(ctx, id)
	if err != nil {
		return domain.Membership{}, err
	}
	now := s.clock()
	m.LastVerified = &now
	return s.saveMembership(ctx, actor, m)
}

func (s *Service) saveMembership(ctx context.Context, actor *domain.Actor, m domain.Membership) (domain.Membership, error) {
	m.UpdatedAt = s.clock()
	if err := s.store.UpdateMembership(ctx, m); err != nil {
		return domain.Membership{}, err
	}
	s.project(ctx, "upsert_membership", func(ctx context.Context) error { return s.graph.UpsertMembership(ctx, m) })
	s.publish(ctx, stream.MembershipChanged, domain.TargetRef{Kind: domain.TargetOrganization, ID: m.OrganizationID}, actor, m)
	return m, nil
}

// RemoveMembership deletes a membership.
func (s *Service) RemoveMembership(ctx context.Context, actor *domain.Actor, id string) error {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return err
	}
	m, err := s.store.GetMembership(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMembership(ctx, id); err != nil {
		return err
	}
	s.project(ctx, "remove_membership", func(ctx context.Context) error { return s.graph.RemoveMembership(ctx, id) })
	s.publish(ctx, stream.MembershipChanged, domain.TargetRef{Kind: domain.TargetOrganization, ID: m.OrganizationID}, actor, map[string]string{"removed": id})
	return nil
}

// ListMemberships lists memberships of a person and/or organization.
func (s *Service) ListMemberships(ctx context.Context, actor *domain.Actor, f MembershipFilter) ([]domain.Membership, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	if f.PersonID == "" && f.OrganizationID == "" {
		return nil, domain.NewValidationError("filter", "person_id or organization_id is required")
	}
	return s.store.ListMemberships(ctx, f)
}

// AddRelationship links two distinct organizations. Requires canManageEntities.
func (s *Service) AddRelationship(ctx context.Context, actor *domain.Actor, in RelationshipInput) (domain.OrgRelationship, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.OrgRelationship{}, err
	}
	in.SourceOrgID = strings.TrimSpace(in.SourceOrgID)
	in.TargetOrgID = strings.TrimSpace(in.TargetOrgID)
	typ := domain.RelationshipType(strings.ToLower(strings.TrimSpace(in.Type)))

	var v domain.Violations
	for _, ref := range []struct{ field, id string }{{"source_org_id", in.SourceOrgID}, {"target_org_id", in.TargetOrgID}} {
		if ref.id == "" {
			v.Add(ref.field, "is required")
			continue
		}
		if _, err := s.store.GetOrganization(ctx, ref.id); err != nil {
			if err := mustExist(&v, ref.field, err); err != nil {
				return domain.OrgRelationship{}, err
			}
		}
	}
	if in.SourceOrgID != "" && in.SourceOrgID == in.TargetOrgID {
		v.Add("target_org_id", "an organization cannot be related to itself")
	}
	if !typ.IsValid() {
		v.Add("relationship_type", "must be one of allied, shadow, hostile, neutral, suspicious")
	}
	checkPeriod(&v, in.StartDate, in.EndDate)
	if err := v.Err(); err != nil {
		return domain.OrgRelationship{}, err
	}

	now := s.clock()
	r := domain.OrgRelationship{
		ID:          ids.NewAt(now),
		SourceOrgID: in.SourceOrgID,
		TargetOrgID: in.TargetOrgID,
		Type:        typ,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateRelationship(ctx, r); err != nil {
		return domain.OrgRelationship{}, err
	}
	s.project(ctx, "upsert_relationship", func(ctx context.Context) error { return s.graph.UpsertRelationship(ctx, r) })
	s.publish(ctx, stream.RelationshipChanged, domain.TargetRef{Kind: domain.TargetOrganization, ID: r.SourceOrgID}, actor, r)
	return r, nil
}

// UpdateRelationship merges patch into a relationship.
func (s *Service) UpdateRelationship(ctx context.Context, actor *domain.Actor, id string, patch RelationshipPatch) (domain.OrgRelationship, error) {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return domain.OrgRelationship{}, err
	}
	r, err := s.store.GetRelationship(ctx, id)
	if err != nil {
		return domain.OrgRelationship{}, err
	}
	var v domain.Violations
	if patch.Type != nil {
		typ := domain.RelationshipType(strings.ToLower(strings.TrimSpace(*patch.Type)))
		if !typ.IsValid() {
			v.Add("relationship_type", "must be one of allied, shadow, hostile, neutral, suspicious")
		}
		r.Type = typ
	}
	if patch.Description != nil {
		r.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.StartDate != nil {
		r.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		r.EndDate = patch.EndDate
	}
	checkPeriod(&v, r.StartDate, r.EndDate)
	if err := v.Err(); err != nil {
		return domain.OrgRelationship{}, err
	}
	r.UpdatedAt = s.clock()
	if err := s.store.UpdateRelationship(ctx, r); err != nil {
		return domain.OrgRelationship{}, err
	}
	s.project(ctx, "upsert_relationship", func(ctx context.Context) error { return s.graph.UpsertRelationship(ctx, r) })
	s.publish(ctx, stream.RelationshipChanged, domain.TargetRef{Kind: domain.TargetOrganization, ID: r.SourceOrgID}, actor, r)
	return r, nil
}

// RemoveRelationship deletes a relationship.
func (s *Service) RemoveRelationship(ctx context.Context, actor *domain.Actor, id string) error {
	if err := s.require(actor, auth.CanManageEntities); err != nil {
		return err
	}
	r, err := s.store.GetRelationship(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRelationship(ctx, id); err != nil {
		return err
	}
	s.project(ctx, "remove_relationship", func(ctx context.Context) error { return s.graph.RemoveRelationship(ctx, id) })
	s.publish(ctx, stream.RelationshipChanged, domain.TargetRef{Kind: domain.TargetOrganization, ID: r.SourceOrgID}, actor, map[string]string{"removed": id})
	return nil
}

// ListRelationships lists relationships in which orgID takes part.
func (s *Service) ListRelationships(ctx context.Context, actor *domain.Actor, orgID string) ([]domain.OrgRelationship, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(orgID) == "" {
		return nil, domain.NewValidationError("organization_id", "is required")
	}
	return s.store.ListRelationships(ctx, orgID)
}
