package auth

import (
	"context"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

// UserDirectory is the read/update view of user accounts the session core needs.
// Lookups return IDENTITY_NOT_FOUND when absent and STORAGE_UNAVAILABLE on failure.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id kernel.UserID) (*Identity, error)
	UpdateLastLogin(ctx context.Context, id kernel.UserID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id kernel.UserID, hash string) error
}

// RefreshStore persists refresh tokens. Every mutation is a single
// conditional update so concurrent callers never both observe success.
// Records are never deleted.
type RefreshStore interface {
	Issue(ctx context.Context, userID kernel.UserID, ip string, ttl time.Duration) (*RefreshToken, error)
	// Lookup returns REFRESH_TOKEN_NOT_FOUND for unknown values
	Lookup(ctx context.Context, tokenValue string) (*RefreshToken, error)
	// Revoke returns false when the token is unknown or already inactive
	Revoke(ctx context.Context, tokenValue string, byIP string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID kernel.UserID, byIP string) (int, error)
	// RevokeSuccessors revokes the active tokens reachable from token through
	// replaced_by and returns how many it revoked
	RevokeSuccessors(ctx context.Context, token *RefreshToken, byIP string) (int, error)
	// Rotate revokes tokenValue, links it to a new token and returns the new
	// token, atomically. REFRESH_TOKEN_NOT_ACTIVE when tokenValue was not active.
	Rotate(ctx context.Context, tokenValue string, byIP string, ttl time.Duration) (*RefreshToken, error)
}

// TokenSigner issues and verifies access tokens
type TokenSigner interface {
	IssueAccessToken(identity *Identity, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (*AccessClaims, error)
}

// TokenVerifier is the subset of the signer the HTTP middleware depends on
type TokenVerifier interface {
	VerifyAccessToken(token string) (*AccessClaims, error)
}

// PasswordHasher hashes new passwords and verifies presented ones.
// Verify never fails loudly: malformed hashes simply do not match. Verify
// with an empty hash must take as long as a real comparison; the session
// manager relies on it for unknown accounts.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// AuditService records security relevant session events
type AuditService interface {
	LogLoginAttempt(ctx context.Context, email string, identity *Identity, success bool, ip string)
	LogLogout(ctx context.Context, revoked bool, ip string)
	LogTokenRefresh(ctx context.Context, identity *Identity, success bool, ip string)
	LogRefreshReuse(ctx context.Context, token *RefreshToken, ip string, revokedChain int)
	LogPasswordChanged(ctx context.Context, userID kernel.UserID, revokedSessions int, ip string)
}
