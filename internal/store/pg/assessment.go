package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"bureau.org/internal/casefile"
	"bureau.org/internal/domain"
)

// assessmentColumns are shared by persons, organizations and incidents.
var assessmentColumns = []string{
	"danger_level", "classification", "status", "assessment_notes",
	"assessed_by_actor_id", "assessed_by_name", "assessed_by_role", "assessed_at",
	"status_updated_by_actor_id", "status_updated_by_name", "status_updated_by_role", "status_updated_at",
	"status_notes",
}

var targetTables = map[domain.TargetKind]string{
	domain.TargetPerson:       "persons",
	domain.TargetOrganization: "organizations",
	domain.TargetIncident:     "incidents",
}

func tableFor(target domain.TargetRef) (string, error) {
	t, ok := targetTables[target.Kind]
	if !ok {
		return "", domain.NewValidationError("kind", fmt.Sprintf("unknown target kind %q", target.Kind))
	}
	return t, nil
}

// assessmentRow is the nullable scan form of domain.Assessment.
type assessmentRow struct {
	level                int
	class, status, notes sql.NullString
	byID, byName, byRole sql.NullString
	at                   sql.NullTime
	suID, suName, suRole sql.NullString
	suAt                 sql.NullTime
	suNotes              sql.NullString
}

func (r *assessmentRow) dest() []any {
	return []any{
		&r.level, &r.class, &r.status, &r.notes,
		&r.byID, &r.byName, &r.byRole, &r.at,
		&r.suID, &r.suName, &r.suRole, &r.suAt,
		&r.suNotes,
	}
}

func (r *assessmentRow) value() domain.Assessment {
	return domain.Assessment{
		DangerLevel:            domain.DangerLevel(r.level),
		Classification:         domain.Classification(r.class.String),
		Status:                 domain.Status(r.status.String).OrDefault(),
		Notes:                  r.notes.String,
		AssessedByActorID:      r.byID.String,
		AssessedByName:         r.byName.String,
		AssessedByRole:         domain.Role(r.byRole.String),
		AssessedAt:             timePtr(r.at),
		StatusUpdatedByActorID: r.suID.String,
		StatusUpdatedByName:    r.suName.String,
		StatusUpdatedByRole:    domain.Role(r.suRole.String),
		StatusUpdatedAt:        timePtr(r.suAt),
		StatusNotes:            r.suNotes.String,
	}
}

func assessmentValues(a domain.Assessment) []any {
	return []any{
		int(a.DangerLevel), nullIfEmpty(string(a.Classification)), string(a.Status.OrDefault()), nullIfEmpty(a.Notes),
		nullIfEmpty(a.AssessedByActorID), nullIfEmpty(a.AssessedByName), nullIfEmpty(string(a.AssessedByRole)), nullTime(a.AssessedAt),
		nullIfEmpty(a.StatusUpdatedByActorID), nullIfEmpty(a.StatusUpdatedByName), nullIfEmpty(string(a.StatusUpdatedByRole)), nullTime(a.StatusUpdatedAt),
		nullIfEmpty(a.StatusNotes),
	}
}

func (s *Store) GetAssessment(ctx context.Context, target domain.TargetRef) (domain.Assessment, error) {
	table, err := tableFor(target)
	if err != nil {
		return domain.Assessment{}, err
	}
	q, args, err := psql.Select(assessmentColumns...).From(table).Where(sq.Eq{"id": target.ID}).ToSql()
	if err != nil {
		return domain.Assessment{}, err
	}
	var r assessmentRow
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(r.dest()...); err != nil {
		return domain.Assessment{}, rowErr(err, string(target.Kind), target.ID)
	}
	return r.value(), nil
}

// ApplyAssessment locks the target row, checks that its assessor is still the
// expected one, then writes the new rating and the history record. Status
// columns belong to ApplyStatus and are not written here.
func (s *Store) ApplyAssessment(ctx context.Context, target domain.TargetRef, expected *domain.Assessor, a domain.Assessment, rec domain.AssessmentHistoryRecord) error {
	table, err := tableFor(target)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()

	lock, args, err := psql.Select(assessmentColumns...).From(table).Where(sq.Eq{"id": target.ID}).Suffix("for update").ToSql()
	if err != nil {
		return err
	}
	var cur assessmentRow
	if err := tx.QueryRowContext(ctx, lock, args...).Scan(cur.dest()...); err != nil {
		return rowErr(err, string(target.Kind), target.ID)
	}
	if !casefile.SameAssessor(cur.value(), expected) {
		return fmt.Errorf("%w: %s was re-assessed concurrently", domain.ErrConflict, target)
	}

	upd, args, err := psql.Update(table).
		Set("danger_level", int(a.DangerLevel)).
		Set("classification", nullIfEmpty(string(a.Classification))).
		Set("assessment_notes", nullIfEmpty(a.Notes)).
		Set("assessed_by_actor_id", a.AssessedByActorID).
		Set("assessed_by_name", a.AssessedByName).
		Set("assessed_by_role", string(a.AssessedByRole)).
		Set("assessed_at", nullTime(a.AssessedAt)).
		Set("updated_at", rec.CreatedAt).
		Where(sq.Eq{"id": target.ID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upd, args...); err != nil {
		return mapErr(err)
	}
	if _, err := tx.ExecContext(ctx, `
		insert into assessment_history (id, target_type, target_id, previous_danger_level, new_danger_level,
			previous_classification, new_classification, actor_id, actor_name, actor_role, notes, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, string(target.Kind), target.ID, int(rec.PreviousDangerLevel), int(rec.NewDangerLevel),
		nullIfEmpty(string(rec.PreviousClassification)), nullIfEmpty(string(rec.NewClassification)),
		rec.ActorID, rec.ActorName, string(rec.ActorRole), nullIfEmpty(rec.Notes), rec.CreatedAt,
	); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

func (s *Store) ApplyStatus(ctx context.Context, target domain.TargetRef, a domain.Assessment) error {
	table, err := tableFor(target)
	if err != nil {
		return err
	}
	at := time.Now().UTC()
	if a.StatusUpdatedAt != nil {
		at = *a.StatusUpdatedAt
	}
	q, args, err := psql.Update(table).
		Set("status", string(a.Status.OrDefault())).
		Set("status_notes", nullIfEmpty(a.StatusNotes)).
		Set("status_updated_by_actor_id", nullIfEmpty(a.StatusUpdatedByActorID)).
		Set("status_updated_by_name", nullIfEmpty(a.StatusUpdatedByName)).
		Set("status_updated_by_role", nullIfEmpty(string(a.StatusUpdatedByRole))).
		Set("status_updated_at", nullTime(a.StatusUpdatedAt)).
		Set("updated_at", at).
		Where(sq.Eq{"id": target.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	return affected(res, err, string(target.Kind), target.ID)
}

func (s *Store) ListHistory(ctx context.Context, target domain.TargetRef) ([]domain.AssessmentHistoryRecord, error) {
	b := psql.Select("id", "previous_danger_level", "new_danger_level", "previous_classification", "new_classification",
		"actor_id", "actor_name", "actor_role", "notes", "created_at").
		From("assessment_history").
		Where(sq.Eq{"target_type": string(target.Kind), "target_id": target.ID}).
		OrderBy("created_at", "id")
	var out []domain.AssessmentHistoryRecord
	err := s.query(ctx, b, func(rows *sql.Rows) error {
		var (
			rec               domain.AssessmentHistoryRecord
			prevLevel         sql.NullInt64
			newLevel          int
			prevClass, newCls sql.NullString
			role              string
			notes             sql.NullString
		)
		if err := rows.Scan(&rec.ID, &prevLevel, &newLevel, &prevClass, &newCls, &rec.ActorID, &rec.ActorName, &role, &notes, &rec.CreatedAt); err != nil {
			return err
		}
		rec.Target = target
		rec.PreviousDangerLevel = domain.DangerLevel(prevLevel.Int64)
		rec.NewDangerLevel = domain.DangerLevel(newLevel)
		rec.PreviousClassification = domain.Classification(prevClass.String)
		rec.NewClassification = domain.Classification(newCls.String)
		rec.ActorRole = domain.Role(role)
		rec.Notes = notes.String
		out = append(out, rec)
		return nil
	})
	return out, err
}
