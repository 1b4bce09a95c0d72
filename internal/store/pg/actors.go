package pg

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"bureau.org/internal/domain"
)

var actorColumns = []string{"id", "email", "real_name", "role", "is_active", "is_master", "password_hash", "created_at", "updated_at"}

func scanActor(row interface{ Scan(...any) error }) (domain.Actor, error) {
	var (
		a        domain.Actor
		realName sql.NullString
		role     string
	)
	err := row.Scan(&a.ID, &a.Email, &realName, &role, &a.IsActive, &a.IsMaster, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	a.RealName = realName.String
	a.Role = domain.Role(role)
	return a, err
}

func (s *Store) CreateActor(ctx context.Context, a domain.Actor) error {
	_, err := s.db.ExecContext(ctx, `
		insert into actors (id, email, real_name, role, is_active, is_master, password_hash, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, strings.ToLower(a.Email), nullIfEmpty(a.RealName), string(a.Role), a.IsActive, a.IsMaster, a.PasswordHash, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	q, args, err := psql.Select(actorColumns...).From("actors").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Actor{}, err
	}
	a, err := scanActor(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.Actor{}, rowErr(err, "actor", id)
	}
	return a, nil
}

func (s *Store) GetActorByEmail(ctx context.Context, email string) (domain.Actor, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	q, args, err := psql.Select(actorColumns...).From("actors").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return domain.Actor{}, err
	}
	a, err := scanActor(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.Actor{}, rowErr(err, "actor", email)
	}
	return a, nil
}

func (s *Store) ListActors(ctx context.Context) ([]domain.Actor, error) {
	var out []domain.Actor
	err := s.query(ctx, psql.Select(actorColumns...).From("actors").OrderBy("created_at", "id"), func(rows *sql.Rows) error {
		a, err := scanActor(rows)
		if err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

// UpdateActor applies the non-nil fields of upd and returns the stored row.
func (s *Store) UpdateActor(ctx context.Context, id string, upd domain.ActorUpdate, at time.Time) (domain.Actor, error) {
	b := psql.Update("actors").Set("updated_at", at).Where(sq.Eq{"id": id}).Suffix("returning " + strings.Join(actorColumns, ", "))
	if upd.RealName != nil {
		b = b.Set("real_name", nullIfEmpty(*upd.RealName))
	}
	if upd.Role != nil {
		b = b.Set("role", string(*upd.Role))
	}
	if upd.IsActive != nil {
		b = b.Set("is_active", *upd.IsActive)
	}
	if upd.PasswordHash != nil {
		b = b.Set("password_hash", *upd.PasswordHash)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return domain.Actor{}, err
	}
	a, err := scanActor(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.Actor{}, rowErr(err, "actor", id)
	}
	return a, nil
}
