// Package pg implements the bureau's persistence on PostgreSQL through
// database/sql and the pgx driver.
package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"bureau.org/internal/config"
	"bureau.org/internal/domain"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
	pgErrCheckViolation      = "23514"
)

// psql builds statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the PostgreSQL implementation of the case file, actor and role
// image repositories.
type Store struct {
	db *sql.DB
}

// Open creates a pool for cfg. It does not dial; call Ping to check reachability.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports domain.ErrBackendUnavailable when the database cannot be reached.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isConnError(err error) bool {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		pgconn.SafeToRetry(err)
}

// mapErr translates driver errors into the domain taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
		case pgErrForeignKeyViolation:
			return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.ConstraintName)
		case pgErrCheckViolation:
			return domain.NewValidationError(pgErr.ConstraintName, pgErr.Message)
		}
		return err
	}
	if isConnError(err) {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return err
}

// rowErr maps sql.ErrNoRows to a not-found error for kind/id.
func rowErr(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return mapErr(err)
}

// affected turns a zero-row update or delete into a not-found error.
func affected(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func encodeIDs(ids []string) []byte {
	if ids == nil {
		ids = []string{}
	}
	raw, _ := json.Marshal(ids)
	return raw
}

func decodeIDs(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// query runs a squirrel select and hands each row to scan.
func (s *Store) query(ctx context.Context, b sq.SelectBuilder, scan func(*sql.Rows) error) error {
	q, args, err := b.ToSql()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return mapErr(rows.Err())
}

func withLimit(b sq.SelectBuilder, n int) sq.SelectBuilder {
	if n > 0 {
		return b.Limit(uint64(n))
	}
	return b
}
