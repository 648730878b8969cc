package migrations

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestFilesAreOrdered(t *testing.T) {
	files, err := Files(FS, "_up.sql")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) == 0 || files[0] != "0001_init_up.sql" {
		t.Fatalf("unexpected files %v", files)
	}
}

func TestUpSkipsAppliedVersions(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_init").AddRow("0002_tenant_notify"))

	ran, err := Up(context.Background(), db)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(ran) != 0 {
		t.Fatalf("expected nothing applied, got %v", ran)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpAppliesPending(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS tenants`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("0001_init").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE OR REPLACE FUNCTION notify_tenant_changed`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("0002_tenant_notify").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ran, err := Up(context.Background(), db)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(ran) != 2 || ran[0] != "0001_init" || ran[1] != "0002_tenant_notify" {
		t.Fatalf("unexpected applied versions %v", ran)
	}
}
