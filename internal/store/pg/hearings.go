package pg

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"bureau.org/internal/domain"
)

var hearingColumns = []string{"id", "incident_id", "created_by", "witness_ids", "question", "status", "created_at", "updated_at", "closed_at"}

func scanHearing(row scanner) (domain.Hearing, error) {
	var (
		h         domain.Hearing
		witnesses []byte
		status    string
		closed    sql.NullTime
	)
	if err := row.Scan(&h.ID, &h.IncidentID, &h.CreatedBy, &witnesses, &h.Question, &status, &h.CreatedAt, &h.UpdatedAt, &closed); err != nil {
		return domain.Hearing{}, err
	}
	ids, err := decodeIDs(witnesses)
	if err != nil {
		return domain.Hearing{}, err
	}
	h.WitnessIDs, h.Status, h.ClosedAt = ids, domain.HearingStatus(status), timePtr(closed)
	return h, nil
}

func (s *Store) CreateHearing(ctx context.Context, h domain.Hearing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, insertSQL("hearings", hearingColumns),
		h.ID, h.IncidentID, h.CreatedBy, encodeIDs(h.WitnessIDs), h.Question, string(h.Status),
		h.CreatedAt, h.UpdatedAt, nullTime(h.ClosedAt)); err != nil {
		return mapErr(err)
	}
	for _, r := range h.Responses.List() {
		if err := upsertResponse(ctx, tx, h.ID, r); err != nil {
			return err
		}
	}
	return mapErr(tx.Commit())
}

// responses loads the answers of the given hearings keyed by hearing id,
// in the order each witness first answered.
func (s *Store) responses(ctx context.Context, hearingIDs ...string) (map[string]domain.Responses, error) {
	out := make(map[string]domain.Responses, len(hearingIDs))
	if len(hearingIDs) == 0 {
		return out, nil
	}
	b := psql.Select("hearing_id", "witness_id", "witness_name", "agreement", "comment", "created_at").
		From("hearing_responses").
		Where(sq.Eq{"hearing_id": hearingIDs}).
		OrderBy("seq")
	err := s.query(ctx, b, func(rows *sql.Rows) error {
		var (
			hid       string
			r         domain.Response
			agreement string
			comment   sql.NullString
		)
		if err := rows.Scan(&hid, &r.WitnessID, &r.WitnessName, &agreement, &comment, &r.CreatedAt); err != nil {
			return err
		}
		r.Agreement, r.Comment = domain.Agreement(agreement), comment.String
		rs := out[hid]
		rs.Upsert(r)
		out[hid] = rs
		return nil
	})
	return out, err
}

func (s *Store) GetHearing(ctx context.Context, id string) (domain.Hearing, error) {
	q, args, err := psql.Select(hearingColumns...).From("hearings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Hearing{}, err
	}
	h, err := scanHearing(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.Hearing{}, rowErr(err, "hearing", id)
	}
	rs, err := s.responses(ctx, id)
	if err != nil {
		return domain.Hearing{}, err
	}
	h.Responses = rs[id]
	return h, nil
}

func (s *Store) UpdateHearing(ctx context.Context, h domain.Hearing) error {
	q, args, err := psql.Update("hearings").
		Set("status", string(h.Status)).
		Set("closed_at", nullTime(h.ClosedAt)).
		Set("updated_at", h.UpdatedAt).
		Where(sq.Eq{"id": h.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	return affected(res, err, "hearing", h.ID)
}

func (s *Store) ListHearings(ctx context.Context, incidentID string) ([]domain.Hearing, error) {
	b := psql.Select(hearingColumns...).From("hearings").OrderBy("created_at", "id")
	if incidentID != "" {
		b = b.Where(sq.Eq{"incident_id": incidentID})
	}
	var out []domain.Hearing
	err := s.query(ctx, b, func(rows *sql.Rows) error {
		h, err := scanHearing(rows)
		if err != nil {
			return err
		}
		out = append(out, h)
		return nil
	})
	if err != nil || len(out) == 0 {
		return out, err
	}
	ids := make([]string, len(out))
	for i, h := range out {
		ids[i] = h.ID
	}
	rs, err := s.responses(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Responses = rs[out[i].ID]
	}
	return out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// upsertResponse replaces a witness's answer without moving it in the
// display order: seq is assigned on first insert only.
func upsertResponse(ctx context.Context, db execer, hearingID string, r domain.Response) error {
	q, args, err := psql.Insert("hearing_responses").
		Columns("hearing_id", "witness_id", "witness_name", "agreement", "comment", "created_at").
		Values(hearingID, r.WitnessID, r.WitnessName, string(r.Agreement), nullIfEmpty(r.Comment), r.CreatedAt).
		Suffix(`on conflict (hearing_id, witness_id) do update set
			witness_name = excluded.witness_name,
			agreement = excluded.agreement,
			comment = excluded.comment,
			created_at = excluded.created_at`).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, q, args...)
	return mapErr(err)
}

func (s *Store) UpsertHearingResponse(ctx context.Context, hearingID string, r domain.Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `update hearings set updated_at = $1 where id = $2`, r.CreatedAt, hearingID)
	if err := affected(res, err, "hearing", hearingID); err != nil {
		return err
	}
	if err := upsertResponse(ctx, tx, hearingID, r); err != nil {
		return err
	}
	return mapErr(tx.Commit())
}

// Witness statements.

var statementColumns = []string{"id", "incident_id", "witness_id", "statement", "statement_status", "judge_comment", "judge_request", "submitted_at", "created_at", "updated_at"}

func scanStatement(row scanner) (domain.WitnessStatement, error) {
	var (
		st                     domain.WitnessStatement
		text, comment, request sql.NullString
		status                 string
		submitted              sql.NullTime
	)
	if err := row.Scan(&st.ID, &st.IncidentID, &st.WitnessID, &text, &status, &comment, &request, &submitted, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return domain.WitnessStatement{}, err
	}
	st.Statement, st.Status = text.String, domain.StatementStatus(status)
	st.JudgeComment, st.JudgeRequest, st.SubmittedAt = comment.String, request.String, timePtr(submitted)
	return st, nil
}

func (s *Store) CreateStatement(ctx context.Context, st domain.WitnessStatement) error {
	_, err := s.db.ExecContext(ctx, insertSQL("witness_statements", statementColumns),
		st.ID, st.IncidentID, st.WitnessID, nullIfEmpty(st.Statement), string(st.Status),
		nullIfEmpty(st.JudgeComment), nullIfEmpty(st.JudgeRequest), nullTime(st.SubmittedAt), st.CreatedAt, st.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetStatement(ctx context.Context, id string) (domain.WitnessStatement, error) {
	q, args, err := psql.Select(statementColumns...).From("witness_statements").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.WitnessStatement{}, err
	}
	st, err := scanStatement(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.WitnessStatement{}, rowErr(err, "statement", id)
	}
	return st, nil
}

func (s *Store) UpdateStatement(ctx context.Context, st domain.WitnessStatement) error {
	q, args, err := psql.Update("witness_statements").
		Set("statement", nullIfEmpty(st.Statement)).
		Set("statement_status", string(st.Status)).
		Set("judge_comment", nullIfEmpty(st.JudgeComment)).
		Set("judge_request", nullIfEmpty(st.JudgeRequest)).
		Set("submitted_at", nullTime(st.SubmittedAt)).
		Set("updated_at", st.UpdatedAt).
		Where(sq.Eq{"id": st.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	return affected(res, err, "statement", st.ID)
}

func (s *Store) ListStatements(ctx context.Context, incidentID string) ([]domain.WitnessStatement, error) {
	b := psql.Select(statementColumns...).From("witness_statements").OrderBy("created_at", "id")
	if incidentID != "" {
		b = b.Where(sq.Eq{"incident_id": incidentID})
	}
	var out []domain.WitnessStatement
	err := s.query(ctx, b, func(rows *sql.Rows) error {
		st, err := scanStatement(rows)
		if err != nil {
			return err
		}
		out = append(out, st)
		return nil
	})
	return out, err
}
