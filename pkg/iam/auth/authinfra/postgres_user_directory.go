package authinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresUserDirectory lee identidades de la tabla users. El núcleo de
// sesiones solo actualiza last_login_at y password_hash.
type PostgresUserDirectory struct {
	db *sqlx.DB
}

func NewPostgresUserDirectory(db *sqlx.DB) *PostgresUserDirectory {
	return &PostgresUserDirectory{db: db}
}

type userPersistence struct {
	ID           string         `db:"id"`
	TenantID     sql.NullString `db:"tenant_id"`
	Email        string         `db:"email"`
	Role         string         `db:"role"`
	IsActive     bool           `db:"is_active"`
	PasswordHash string         `db:"password_hash"`
	LastLoginAt  sql.NullTime   `db:"last_login_at"`
}

const userColumns = `id, tenant_id, email, role, is_active, password_hash, last_login_at`

func (r *PostgresUserDirectory) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	return r.findOne(ctx, query, auth.NormalizeEmail(email))
}

func (r *PostgresUserDirectory) FindByID(ctx context.Context, id kernel.UserID) (*auth.Identity, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id.String())
}

func (r *PostgresUserDirectory) findOne(ctx context.Context, query string, arg string) (*auth.Identity, error) {
	var row userPersistence
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrIdentityNotFound()
		}
		return nil, auth.ErrStorageUnavailable(err)
	}
	return userToDomain(row), nil
}

func (r *PostgresUserDirectory) UpdateLastLogin(ctx context.Context, id kernel.UserID, at time.Time) error {
	return r.update(ctx, `UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at)
}

func (r *PostgresUserDirectory) UpdatePasswordHash(ctx context.Context, id kernel.UserID, hash string) error {
	return r.update(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
}

func (r *PostgresUserDirectory) update(ctx context.Context, query string, id kernel.UserID, value interface{}) error {
	result, err := r.db.ExecContext(ctx, query, id.String(), value)
	if err != nil {
		return auth.ErrStorageUnavailable(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return auth.ErrStorageUnavailable(err)
	}
	if n == 0 {
		return auth.ErrIdentityNotFound()
	}
	return nil
}

func userToDomain(row userPersistence) *auth.Identity {
	id := &auth.Identity{
		ID:           kernel.NewUserID(row.ID),
		Email:        row.Email,
		Role:         kernel.Role(row.Role),
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
	}
	if row.TenantID.Valid {
		id.TenantID = kernel.TenantIDPtr(row.TenantID.String)
	}
	if row.LastLoginAt.Valid {
		at := row.LastLoginAt.Time
		id.LastLoginAt = &at
	}
	return id
}
