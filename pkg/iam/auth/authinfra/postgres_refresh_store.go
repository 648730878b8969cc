package authinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRefreshStore es la implementación en PostgreSQL de auth.RefreshStore.
// Cada mutación es un UPDATE condicional; la rotación usa una transacción.
type PostgresRefreshStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type PostgresStoreOption func(*PostgresRefreshStore)

func WithPostgresClock(now func() time.Time) PostgresStoreOption {
	return func(s *PostgresRefreshStore) {
		s.now = now
	}
}

// NewPostgresRefreshStore crea una nueva instancia del repositorio.
func NewPostgresRefreshStore(db *sqlx.DB, opts ...PostgresStoreOption) *PostgresRefreshStore {
	s := &PostgresRefreshStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type refreshTokenPersistence struct {
	ID          string         `db:"id"`
	TokenHash   string         `db:"token_hash"`
	UserID      string         `db:"user_id"`
	CreatedAt   time.Time      `db:"created_at"`
	ExpiresAt   time.Time      `db:"expires_at"`
	CreatedByIP sql.NullString `db:"created_by_ip"`
	RevokedAt   sql.NullTime   `db:"revoked_at"`
	RevokedByIP sql.NullString `db:"revoked_by_ip"`
	ReplacedBy  sql.NullString `db:"replaced_by"`
}

const refreshTokenColumns = `id, token_hash, user_id, created_at, expires_at, created_by_ip, revoked_at, revoked_by_ip, replaced_by`

const insertRefreshToken = `
	INSERT INTO refresh_tokens (
		id, token_hash, user_id, created_at, expires_at, created_by_ip
	) VALUES (
		:id, :token_hash, :user_id, :created_at, :expires_at, :created_by_ip
	)`

// Issue inserta un token nuevo y activo.
func (s *PostgresRefreshStore) Issue(ctx context.Context, userID kernel.UserID, ip string, ttl time.Duration) (*auth.RefreshToken, error) {
	rt, err := auth.NewRefreshToken(userID, ip, s.now().UTC(), ttl)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.NamedExecContext(ctx, insertRefreshToken, toPersistence(rt)); err != nil {
		return nil, mapInsertError(err)
	}
	return rt, nil
}

// Lookup busca un token por el hash de su valor.
func (s *PostgresRefreshStore) Lookup(ctx context.Context, tokenValue string) (*auth.RefreshToken, error) {
	var row refreshTokenPersistence
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	if err := s.db.GetContext(ctx, &row, query, auth.HashRefreshToken(tokenValue)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrRefreshTokenNotFound()
		}
		return nil, auth.ErrStorageUnavailable(err)
	}
	rt := toDomain(row)
	return &rt, nil
}

// Revoke revoca el token solo si sigue activo. Devuelve true si esta llamada lo revocó.
func (s *PostgresRefreshStore) Revoke(ctx context.Context, tokenValue string, byIP string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2`

	result, err := s.db.ExecContext(ctx, query, auth.HashRefreshToken(tokenValue), s.now().UTC(), byIP)
	if err != nil {
		return false, auth.ErrStorageUnavailable(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, auth.ErrStorageUnavailable(err)
	}
	return n == 1, nil
}

// RevokeAllForUser revoca todos los tokens activos del usuario en una sola sentencia.
func (s *PostgresRefreshStore) RevokeAllForUser(ctx context.Context, userID kernel.UserID, byIP string) (int, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2`

	result, err := s.db.ExecContext(ctx, query, userID.String(), s.now().UTC(), byIP)
	if err != nil {
		return 0, auth.ErrStorageUnavailable(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, auth.ErrStorageUnavailable(err)
	}
	return int(n), nil
}

// RevokeSuccessors recorre la cadena replaced_by desde el token dado y revoca
// los sucesores activos en una sola sentencia.
func (s *PostgresRefreshStore) RevokeSuccessors(ctx context.Context, token *auth.RefreshToken, byIP string) (int, error) {
	query := `
		WITH RECURSIVE chain AS (
			SELECT replaced_by AS id FROM refresh_tokens
			WHERE id = $1 AND replaced_by IS NOT NULL
			UNION ALL
			SELECT t.replaced_by FROM refresh_tokens t
			JOIN chain c ON t.id = c.id
			WHERE t.replaced_by IS NOT NULL
		)
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3
		WHERE id IN (SELECT id FROM chain) AND revoked_at IS NULL AND expires_at > $2`

	result, err := s.db.ExecContext(ctx, query, token.ID, s.now().UTC(), byIP)
	if err != nil {
		return 0, auth.ErrStorageUnavailable(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, auth.ErrStorageUnavailable(err)
	}
	return int(n), nil
}

// Rotate revoca el token presentado, lo enlaza con su sucesor e inserta el
// sucesor dentro de una transacción. Si el UPDATE no encuentra un token
// activo, otro refresh ya lo consumió.
func (s *PostgresRefreshStore) Rotate(ctx context.Context, tokenValue string, byIP string, ttl time.Duration) (*auth.RefreshToken, error) {
	now := s.now().UTC()
	next, err := auth.NewRefreshToken("", byIP, now, ttl)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, auth.ErrStorageUnavailable(err)
	}
	defer tx.Rollback()

	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3, replaced_by = $4
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
		RETURNING user_id`

	var userID string
	err = tx.QueryRowxContext(ctx, query, auth.HashRefreshToken(tokenValue), now, byIP, next.ID).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrRefreshTokenNotActive()
		}
		return nil, auth.ErrStorageUnavailable(err)
	}

	next.UserID = kernel.NewUserID(userID)
	if _, err := tx.NamedExecContext(ctx, insertRefreshToken, toPersistence(next)); err != nil {
		return nil, mapInsertError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, auth.ErrStorageUnavailable(err)
	}
	return next, nil
}

func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return auth.ErrRefreshTokenGenerationFailed(err)
	}
	return auth.ErrStorageUnavailable(err)
}

func toPersistence(rt *auth.RefreshToken) refreshTokenPersistence {
	return refreshTokenPersistence{
		ID:          rt.ID,
		TokenHash:   rt.TokenHash,
		UserID:      rt.UserID.String(),
		CreatedAt:   rt.CreatedAt,
		ExpiresAt:   rt.ExpiresAt,
		CreatedByIP: sql.NullString{String: rt.CreatedByIP, Valid: rt.CreatedByIP != ""},
	}
}

func toDomain(row refreshTokenPersistence) auth.RefreshToken {
	rt := auth.RefreshToken{
		ID:          row.ID,
		TokenHash:   row.TokenHash,
		UserID:      kernel.NewUserID(row.UserID),
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
		CreatedByIP: row.CreatedByIP.String,
	}
	if row.RevokedAt.Valid {
		at := row.RevokedAt.Time
		rt.RevokedAt = &at
	}
	if row.RevokedByIP.Valid {
		ip := row.RevokedByIP.String
		rt.RevokedByIP = &ip
	}
	if row.ReplacedBy.Valid {
		id := row.ReplacedBy.String
		rt.ReplacedBy = &id
	}
	return rt
}
