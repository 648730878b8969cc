package tenantinfra_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant"
	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant/tenantinfra"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestPostgresFindByDomain(t *testing.T) {
	db, mock := newMockDB(t)
	dir := tenantinfra.NewPostgresDirectory(db)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, name, domain, is_active, created_at FROM tenants\s+WHERE domain IS NOT NULL AND lower\(domain\) = lower\(\$1\)`).
		WithArgs("shop.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "domain", "is_active", "created_at"}).
			AddRow("t1", "Shop", "Shop.Test", true, created))

	got, err := dir.FindByDomain(context.Background(), "shop.test")
	if err != nil {
		t.Fatalf("FindByDomain: %v", err)
	}
	if got.ID != "t1" || got.Domain == nil || *got.Domain != "Shop.Test" || !got.IsActive {
		t.Fatalf("unexpected tenant %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresFindByDomainNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	dir := tenantinfra.NewPostgresDirectory(db)

	mock.ExpectQuery(`FROM tenants`).WithArgs("nope.test").WillReturnError(sql.ErrNoRows)

	_, err := dir.FindByDomain(context.Background(), "nope.test")
	if !errx.IsCode(err, tenant.CodeTenantNotFound) {
		t.Fatalf("expected TENANT_NOT_FOUND, got %v", err)
	}
}

func TestPostgresFindByDomainStorageFailure(t *testing.T) {
	db, mock := newMockDB(t)
	dir := tenantinfra.NewPostgresDirectory(db)

	mock.ExpectQuery(`FROM tenants`).WithArgs("shop.test").WillReturnError(errors.New("connection refused"))

	_, err := dir.FindByDomain(context.Background(), "shop.test")
	if !errx.IsCode(err, tenant.CodeStorageUnavailable) || !errx.IsRetryable(err) {
		t.Fatalf("expected retryable storage error, got %v", err)
	}
}

func TestPostgresList(t *testing.T) {
	db, mock := newMockDB(t)
	dir := tenantinfra.NewPostgresDirectory(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tenants`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`FROM tenants ORDER BY created_at, id LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "domain", "is_active", "created_at"}).
			AddRow("t3", "Third", nil, true, time.Now()))

	page, err := dir.List(context.Background(), kernel.PaginationOptions{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Domain != nil || page.Page.Pages != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
