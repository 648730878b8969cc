package tenantinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresDirectory es la implementación en PostgreSQL de tenant.Directory.
type PostgresDirectory struct {
	db *sqlx.DB
}

// NewPostgresDirectory crea una nueva instancia del directorio.
func NewPostgresDirectory(db *sqlx.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

type tenantPersistence struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Domain    sql.NullString `db:"domain"`
	IsActive  bool           `db:"is_active"`
	CreatedAt time.Time      `db:"created_at"`
}

const tenantColumns = `id, name, domain, is_active, created_at`

// FindByDomain busca el tenant cuyo dominio coincide con el host normalizado.
// Los tenants sin dominio nunca coinciden. Si hubiera varios, gana el activo.
func (r *PostgresDirectory) FindByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	var row tenantPersistence
	query := `SELECT ` + tenantColumns + ` FROM tenants
		WHERE domain IS NOT NULL AND lower(domain) = lower($1)
		ORDER BY is_active DESC
		LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, domain); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound().WithDetail("domain", domain)
		}
		return nil, tenant.ErrStorageUnavailable(err)
	}
	t := toDomain(row)
	return &t, nil
}

// List devuelve los tenants paginados por fecha de creación.
func (r *PostgresDirectory) List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[tenant.Tenant], error) {
	opts = opts.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM tenants`); err != nil {
		return kernel.Paginated[tenant.Tenant]{}, tenant.ErrStorageUnavailable(err)
	}

	var rows []tenantPersistence
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at, id LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, opts.PageSize, opts.Offset()); err != nil {
		return kernel.Paginated[tenant.Tenant]{}, tenant.ErrStorageUnavailable(err)
	}

	items := make([]tenant.Tenant, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDomain(row))
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

func toDomain(row tenantPersistence) tenant.Tenant {
	t := tenant.Tenant{
		ID:        kernel.NewTenantID(row.ID),
		Name:      row.Name,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
	}
	if row.Domain.Valid {
		d := row.Domain.String
		t.Domain = &d
	}
	return t
}
