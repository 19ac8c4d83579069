package database

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyMigrationsSkipsApplied(t *testing.T) {
	db, mock := newMock(t)

	fsys := fstest.MapFS{
		"001_init.sql":  {Data: []byte("CREATE TABLE a (id INT);")},
		"002_extra.sql": {Data: []byte("CREATE TABLE b (id INT);")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_init.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT);")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
		WithArgs("002_extra.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := applyMigrations(context.Background(), db, fsys, discardLogger()); err != nil {
		t.Fatalf("applyMigrations() error = %v", err)
	}
}

func TestApplyMigrationsStopsOnFailure(t *testing.T) {
	db, mock := newMock(t)

	fsys := fstest.MapFS{"001_init.sql": {Data: []byte("CREATE TABLE broken")}}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE broken")).
		WillReturnError(io.ErrUnexpectedEOF)
	mock.ExpectRollback()

	if err := applyMigrations(context.Background(), db, fsys, discardLogger()); err == nil {
		t.Fatal("expected migration error")
	}
}

func TestEmbeddedSchemaPresent(t *testing.T) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}
	body, err := fs.ReadFile(sub, "001_init.sql")
	if err != nil {
		t.Fatalf("embedded schema missing: %v", err)
	}
	for _, table := range []string{"content_sources", "raw_content", "content_cards", "automation_runs"} {
		if !regexp.MustCompile(`CREATE TABLE IF NOT EXISTS ` + table + ` `).Match(body) {
			t.Errorf("schema does not create %s", table)
		}
	}
}
