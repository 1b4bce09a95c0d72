package pg

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"bureau.org/internal/casefile"
	"bureau.org/internal/domain"
)

type scanner interface{ Scan(...any) error }

func cols(base ...string) []string {
	return append(append(base, assessmentColumns...), "created_at", "updated_at")
}

func placeholders(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteString("$")
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

func insertSQL(table string, columns []string) string {
	return "insert into " + table + " (" + strings.Join(columns, ", ") + ") values (" + placeholders(len(columns)) + ")"
}

// Persons.

var personColumns = cols("id", "handle", "real_name", "notes")

func scanPerson(row scanner) (domain.Person, error) {
	var (
		p           domain.Person
		name, notes sql.NullString
		a           assessmentRow
	)
	dest := append([]any{&p.ID, &p.Handle, &name, &notes}, a.dest()...)
	dest = append(dest, &p.CreatedAt, &p.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return domain.Person{}, err
	}
	p.RealName, p.Notes, p.Assessment = name.String, notes.String, a.value()
	return p, nil
}

func (s *Store) CreatePerson(ctx context.Context, p domain.Person) error {
	args := append([]any{p.ID, p.Handle, nullIfEmpty(p.RealName), nullIfEmpty(p.Notes)}, assessmentValues(p.Assessment)...)
	args = append(args, p.CreatedAt, p.UpdatedAt)
	_, err := s.db.ExecContext(ctx, insertSQL("persons", personColumns), args...)
	return mapErr(err)
}

func (s *Store) getPerson(ctx context.Context, where sq.Sqlizer, key string) (domain.Person, error) {
	q, args, err := psql.Select(personColumns...).From("persons").Where(where).ToSql()
	if err != nil {
		return domain.Person{}, err
	}
	p, err := scanPerson(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.Person{}, rowErr(err, "person", key)
	}
	return p, nil
}

func (s *Store) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	return s.getPerson(ctx, sq.Eq{"id": id}, id)
}

func (s *Store) FindPersonByHandle(ctx context.Context, handle string) (domain.Person, error) {
	return s.getPerson(ctx, sq.Expr("lower(handle) = lower(?)", handle), handle)
}

// UpdatePerson stores the descriptive fields; the assessment block is only
// written through ApplyAssessment and ApplyStatus.
func (s *Store) UpdatePerson(ctx context.Context, p domain.Person) error {
	q, args, err := psql.Update("persons").
		Set("handle", p.Handle).
		Set("real_name", nullIfEmpty(p.RealName)).
		Set("notes", nullIfEmpty(p.Notes)).
		Set("updated_at", p.UpdatedAt).
		Where(sq.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	return affected(res, err, "person", p.ID)
}

func (s *Store) ListPersons(ctx context.Context, f casefile.PersonFilter) ([]domain.Person, error) {
	b := psql.Select(personColumns...).From("persons").OrderBy("created_at", "id")
	if f.Handle != "" {
		b = b.Where(sq.Expr("lower(handle) = lower(?)", f.Handle))
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	out := []domain.Person{}
	err := s.query(ctx, withLimit(b, f.Limit), func(rows *sql.Rows) error {
		p, err := scanPerson(rows)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// Organizations.

var organizationColumns = cols("id", "name", "description")

func scanOrganization(row scanner) (domain.Organization, error) {
	var (
		o    domain.Organization
		desc sql.NullString
		a    assessmentRow
	)
	dest := append([]any{&o.ID, &o.Name, &desc}, a.dest()...)
	dest = append(dest, &o.CreatedAt, &o.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return domain.Organization{}, err
	}
	o.Description, o.Assessment = desc.String, a.value()
	return o, nil
}

func (s *Store) CreateOrganization(ctx context.Context, o domain.Organization) error {
	args := append([]any{o.ID, o.Name, nullIfEmpty(o.Description)}, assessmentValues(o.Assessment)...)
	args = append(args, o.CreatedAt, o.UpdatedAt)
	_, err := s.db.ExecContext(ctx, insertSQL("organizations", organizationColumns), args...)
	return mapErr(err)
}

func (s *Store) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	q, args, err := psql.Select(organizationColumns...).From("organizations").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Organization{}, err
	}
	o, err := scanOrganization(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.Organization{}, rowErr(err, "organization", id)
	}
	return o, nil
}

func (s *Store) UpdateOrganization(ctx context.Context, o domain.Organization) error {
	q, args, err := psql.Update("organizations").
		Set("name", o.Name).
		Set("description", nullIfEmpty(o.Description)).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	return affected(res, err, "organization", o.ID)
}

func (s *Store) ListOrganizations(ctx context.Context, f casefile.OrganizationFilter) ([]domain.Organization, error) {
	b := psql.Select(organizationColumns...).From("organizations").OrderBy("created_at", "id")
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	out := []domain.Organization{}
	err := s.query(ctx, withLimit(b, f.Limit), func(rows *sql.Rows) error {
		o, err := scanOrganization(rows)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	return out, err
}

// Incidents.

var incidentColumns = cols("id", "person_id", "reporter_id", "title", "description", "location", "occurred_at", "witness_ids")

func scanIncident(row scanner) (domain.IncidentEntry, error) {
	var (
		in             domain.IncidentEntry
		desc, location sql.NullString
		occurred       sql.NullTime
		witnesses      []byte
		a              assessmentRow
	)
	dest := append([]any{&in.ID, &in.PersonID, &in.ReporterID, &in.Title, &desc, &location, &occurred, &witnesses}, a.dest()...)
	dest = append(dest, &in.CreatedAt, &in.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return domain.IncidentEntry{}, err
	}
	ids, err := decodeIDs(witnesses)
	if err != nil {
		return domain.IncidentEntry{}, err
	}
	in.Description, in.Location, in.OccurredAt = desc.String, location.String, timePtr(occurred)
	in.WitnessIDs, in.Assessment = ids, a.value()
	return in, nil
}

func (s *Store) CreateIncident(ctx context.Context, in domain.IncidentEntry) error {
	args := append([]any{
		in.ID, in.PersonID, in.ReporterID, in.Title, nullIfEmpty(in.Description), nullIfEmpty(in.Location),
		nullTime(in.OccurredAt), encodeIDs(in.WitnessIDs),
	}, assessmentValues(in.Assessment)...)
	args = append(args, in.CreatedAt, in.UpdatedAt)
	_, err := s.db.ExecContext(ctx, insertSQL("incidents", incidentColumns), args...)
	return mapErr(err)
}

func (s *Store) GetIncident(ctx context.Context, id string) (domain.IncidentEntry, error) {
	q, args, err := psql.Select(incidentColumns...).From("incidents").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.IncidentEntry{}, err
	}
	in, err := scanIncident(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.IncidentEntry{}, rowErr(err, "incident", id)
	}
	return in, nil
}

// UpdateIncident never changes the reporter or the assessment block.
func (s *Store) UpdateIncident(ctx context.Context, in domain.IncidentEntry) error {
	q, args, err := psql.Update("incidents").
		Set("person_id", in.PersonID).
		Set("title", in.Title).
		Set("description", nullIfEmpty(in.Description)).
		Set("location", nullIfEmpty(in.Location)).
		Set("occurred_at", nullTime(in.OccurredAt)).
		Set("witness_ids", encodeIDs(in.WitnessIDs)).
		Set("updated_at", in.UpdatedAt).
		Where(sq.Eq{"id": in.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	return affected(res, err, "incident", in.ID)
}

func (s *Store) ListIncidents(ctx context.Context, f casefile.IncidentFilter) ([]domain.IncidentEntry, error) {
	b := psql.Select(incidentColumns...).From("incidents").OrderBy("created_at", "id")
	if f.PersonID != "" {
		b = b.Where(sq.Eq{"person_id": f.PersonID})
	}
	if f.ReporterID != "" {
		b = b.Where(sq.Eq{"reporter_id": f.ReporterID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	out := []domain.IncidentEntry{}
	err := s.query(ctx, withLimit(b, f.Limit), func(rows *sql.Rows) error {
		in, err := scanIncident(rows)
		if err != nil {
			return err
		}
		out = append(out, in)
		return nil
	})
	return out, err
}
