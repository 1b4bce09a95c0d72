package pg

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"bureau.org/internal/casefile"
	"bureau.org/internal/domain"
)

var membershipColumns = []string{"id", "person_id", "organization_id", "role", "start_date", "end_date", "is_active", "last_verified", "created_at", "updated_at"}

func scanMembership(row scanner) (domain.Membership, error) {
	var (
		m                  domain.Membership
		role               sql.NullString
		start, end, verify sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.PersonID, &m.OrganizationID, &role, &start, &end, &m.IsActive, &verify, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return domain.Membership{}, err
	}
	m.Role = role.String
	m.StartDate, m.EndDate, m.LastVerified = timePtr(start), timePtr(end), timePtr(verify)
	return m, nil
}

func (s *Store) CreateMembership(ctx context.Context, m domain.Membership) error {
	_, err := s.db.ExecContext(ctx, insertSQL("memberships", membershipColumns),
		m.ID, m.PersonID, m.OrganizationID, nullIfEmpty(m.Role), nullTime(m.StartDate), nullTime(m.EndDate),
		m.IsActive, nullTime(m.LastVerified), m.CreatedAt, m.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetMembership(ctx context.Context, id string) (domain.Membership, error) {
	q, args, err := psql.Select(membershipColumns...).From("memberships").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Membership{}, err
	}
	m, err := scanMembership(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.Membership{}, rowErr(err, "membership", id)
	}
	return m, nil
}

func (s *Store) UpdateMembership(ctx context.Context, m domain.Membership) error {
	q, args, err := psql.Update("memberships").
		Set("role", nullIfEmpty(m.Role)).
		Set("start_date", nullTime(m.StartDate)).
		Set("end_date", nullTime(m.EndDate)).
		Set("is_active", m.IsActive).
		Set("last_verified", nullTime(m.LastVerified)).
		Set("updated_at", m.UpdatedAt).
		Where(sq.Eq{"id": m.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	return affected(res, err, "membership", m.ID)
}

func (s *Store) DeleteMembership(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from memberships where id = $1`, id)
	return affected(res, err, "membership", id)
}

func (s *Store) ListMemberships(ctx context.Context, f casefile.MembershipFilter) ([]domain.Membership, error) {
	b := psql.Select(membershipColumns...).From("memberships").OrderBy("created_at", "id")
	if f.PersonID != "" {
		b = b.Where(sq.Eq{"person_id": f.PersonID})
	}
	if f.OrganizationID != "" {
		b = b.Where(sq.Eq{"organization_id": f.OrganizationID})
	}
	if f.ActiveOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}
	var out []domain.Membership
	err := s.query(ctx, b, func(rows *sql.Rows) error {
		m, err := scanMembership(rows)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

var relationshipColumns = []string{"id", "source_org_id", "target_org_id", "relationship_type", "description", "start_date", "end_date", "created_at", "updated_at"}

func scanRelationship(row scanner) (domain.OrgRelationship, error) {
	var (
		r          domain.OrgRelationship
		kind       string
		desc       sql.NullString
		start, end sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.SourceOrgID, &r.TargetOrgID, &kind, &desc, &start, &end, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.OrgRelationship{}, err
	}
	r.Type, r.Description = domain.RelationshipType(kind), desc.String
	r.StartDate, r.EndDate = timePtr(start), timePtr(end)
	return r, nil
}

func (s *Store) CreateRelationship(ctx context.Context, r domain.OrgRelationship) error {
	_, err := s.db.ExecContext(ctx, insertSQL("org_relationships", relationshipColumns),
		r.ID, r.SourceOrgID, r.TargetOrgID, string(r.Type), nullIfEmpty(r.Description),
		nullTime(r.StartDate), nullTime(r.EndDate), r.CreatedAt, r.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetRelationship(ctx context.Context, id string) (domain.OrgRelationship, error) {
	q, args, err := psql.Select(relationshipColumns...).From("org_relationships").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.OrgRelationship{}, err
	}
	r, err := scanRelationship(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.OrgRelationship{}, rowErr(err, "relationship", id)
	}
	return r, nil
}

func (s *Store) UpdateRelationship(ctx context.Context, r domain.OrgRelationship) error {
	q, args, err := psql.Update("org_relationships").
		Set("relationship_type", string(r.Type)).
		Set("description", nullIfEmpty(r.Description)).
		Set("start_date", nullTime(r.StartDate)).
		Set("end_date", nullTime(r.EndDate)).
		Set("updated_at", r.UpdatedAt).
		Where(sq.Eq{"id": r.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	return affected(res, err, "relationship", r.ID)
}

func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from org_relationships where id = $1`, id)
	return affected(res, err, "relationship", id)
}

func (s *Store) ListRelationships(ctx context.Context, orgID string) ([]domain.OrgRelationship, error) {
	b := psql.Select(relationshipColumns...).From("org_relationships").OrderBy("created_at", "id")
	if orgID != "" {
		b = b.Where(sq.Or{sq.Eq{"source_org_id": orgID}, sq.Eq{"target_org_id": orgID}})
	}
	var out []domain.OrgRelationship
	err := s.query(ctx, b, func(rows *sql.Rows) error {
		r, err := scanRelationship(rows)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}
