package migrate

import (
	"context"
	"io/fs"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatementsKeepsQuotedSemicolons(t *testing.T) {
	stmts := splitStatements("insert into t values ('a;b');\n-- note; not a split\nselect 1;")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], "'a;b'") {
		t.Fatalf("quoted semicolon was split: %q", stmts[0])
	}
}

func TestEmbeddedMigrationsAreOrderedAndPaired(t *testing.T) {
	ups, err := collectSQL(Migrations(), ".up.sql")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(ups) < 4 || ups[0] != "0001_actors.up.sql" {
		t.Fatalf("unexpected migrations: %v", ups)
	}
	downs, err := collectSQL(Migrations(), ".down.sql")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(downs) != len(ups) {
		t.Fatalf("every migration needs a down file: up=%v down=%v", ups, downs)
	}
	var all strings.Builder
	for _, name := range ups {
		body, err := fs.ReadFile(Migrations(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		all.Write(body)
	}
	for _, table := range []string{"actors", "persons", "organizations", "incidents", "assessment_history",
		"memberships", "org_relationships", "hearings", "hearing_responses", "witness_statements", "role_images"} {
		if !strings.Contains(all.String(), "create table if not exists "+table+" (") {
			t.Fatalf("no migration creates %s", table)
		}
	}
}

func TestUpAppliesPendingOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"0001_a.down.sql": {Data: []byte("drop table a;")},
		"0002_b.up.sql":   {Data: []byte("create table b (id int); create index b_idx on b (id);")},
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr := NewManager(db, fsys, nil)
	mgr.now = func() time.Time { return now }

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table b (id int);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("create index b_idx on b (id);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into schema_migrations").WithArgs("0002_b.up.sql", now).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := mgr.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRequiresDownFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{"0002_b.up.sql": {Data: []byte("create table b (id int);")}}
	mgr := NewManager(db, fsys, nil)

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0002_b.up.sql"))

	err = mgr.Down(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing down migration") {
		t.Fatalf("expected missing down error, got %v", err)
	}
}
