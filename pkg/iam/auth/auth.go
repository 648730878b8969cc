package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

// ============================================================================
// Identity
// ============================================================================

// Identity is an authenticatable principal as seen by the session core.
// Role and tenant are owned by the user directory; the core only reads them.
type Identity struct {
	ID           kernel.UserID    `json:"id"`
	TenantID     *kernel.TenantID `json:"tenant_id,omitempty"`
	Email        string           `json:"email"`
	Role         kernel.Role      `json:"role"`
	IsActive     bool             `json:"is_active"`
	PasswordHash string           `json:"-"`
	LastLoginAt  *time.Time       `json:"last_login_at,omitempty"`
}

// Validate enforces the role/tenant pairing: SUPER_ADMIN never belongs to a
// tenant and every other role always does.
func (i *Identity) Validate() error {
	if i.ID.IsEmpty() {
		return ErrInvalidIdentity().WithDetail("reason", "missing id")
	}
	if !i.Role.IsValid() {
		return ErrInvalidIdentity().WithDetail("reason", "unknown role")
	}
	if i.Role == kernel.RoleSuperAdmin && i.TenantID != nil {
		return ErrInvalidIdentity().WithDetail("reason", "super admin with tenant")
	}
	if i.Role.IsTenantScoped() && (i.TenantID == nil || i.TenantID.IsEmpty()) {
		return ErrInvalidIdentity().WithDetail("reason", "tenant scoped role without tenant")
	}
	return nil
}

// NormalizeEmail is applied before every directory lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ============================================================================
// Token Types
// ============================================================================

// RefreshToken is the persisted record of an opaque refresh token.
// Token holds the plaintext value only on the record returned by Issue or
// Rotate; stores persist TokenHash.
type RefreshToken struct {
	ID          string        `json:"id"`
	Token       string        `json:"-"`
	TokenHash   string        `json:"-"`
	UserID      kernel.UserID `json:"user_id"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CreatedByIP string        `json:"created_by_ip"`
	RevokedAt   *time.Time    `json:"revoked_at,omitempty"`
	RevokedByIP *string       `json:"revoked_by_ip,omitempty"`
	ReplacedBy  *string       `json:"replaced_by,omitempty"`
}

// IsActive reports whether the token can still be exchanged at now.
// The expiry boundary is exclusive.
func (r *RefreshToken) IsActive(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// IsRevoked is true once the token was explicitly revoked or rotated
func (r *RefreshToken) IsRevoked() bool {
	return r.RevokedAt != nil
}

// WasRotated is true when the token was consumed by a refresh
func (r *RefreshToken) WasRotated() bool {
	return r.RevokedAt != nil && r.ReplacedBy != nil
}

// TokenPair is what a successful login or refresh hands back to the client
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginResult bundles the authenticated identity with its tokens
type LoginResult struct {
	Identity *Identity `json:"identity"`
	Tokens   TokenPair `json:"tokens"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeInvalidCredentials    = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid email or password")
	CodeInvalidOrExpiredToken = ErrRegistry.Register("INVALID_OR_EXPIRED_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired refresh token")

	CodeTokenMalformed               = ErrRegistry.Register("TOKEN_MALFORMED", errx.TypeAuthorization, http.StatusUnauthorized, "Access token is malformed")
	CodeTokenSignatureInvalid        = ErrRegistry.Register("TOKEN_SIGNATURE_INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Access token signature is invalid")
	CodeTokenExpired                 = ErrRegistry.Register("TOKEN_EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Access token has expired")
	CodeTokenIssuerAudienceMismatch  = ErrRegistry.Register("TOKEN_ISSUER_AUDIENCE_MISMATCH", errx.TypeAuthorization, http.StatusUnauthorized, "Access token issuer or audience mismatch")
	CodeTokenGenerationFailed        = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeConfiguration                = ErrRegistry.Register("CONFIGURATION", errx.TypeInternal, http.StatusInternalServerError, "Authentication is not configured")
	CodeStorageUnavailable           = ErrRegistry.Register("STORAGE_UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Authentication storage is unavailable")
	CodeInvalidIdentity              = ErrRegistry.Register("INVALID_IDENTITY", errx.TypeInternal, http.StatusInternalServerError, "Identity violates role and tenant rules")
	CodeIdentityNotFound             = ErrRegistry.Register("IDENTITY_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Identity not found")
	CodeRefreshTokenNotFound         = ErrRegistry.Register("REFRESH_TOKEN_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Refresh token not found")
	CodeRefreshTokenNotActive        = ErrRegistry.Register("REFRESH_TOKEN_NOT_ACTIVE", errx.TypeConflict, http.StatusConflict, "Refresh token is no longer active")
	CodeWeakPassword                 = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password does not meet the policy")
	CodeRefreshTokenGenerationFailed = ErrRegistry.Register("REFRESH_TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Refresh token generation failed")
	CodePasswordHashFailed           = ErrRegistry.Register("PASSWORD_HASH_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Password could not be hashed")
)

// Helper functions
func ErrInvalidCredentials() *errx.Error {
	return ErrRegistry.New(CodeInvalidCredentials)
}

func ErrInvalidOrExpiredToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidOrExpiredToken)
}

func ErrTokenGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenGenerationFailed)
}

func ErrConfiguration(setting string) *errx.Error {
	return ErrRegistry.New(CodeConfiguration).WithDetail("setting", setting)
}

func ErrStorageUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeStorageUnavailable, cause)
}

func ErrInvalidIdentity() *errx.Error {
	return ErrRegistry.New(CodeInvalidIdentity)
}

func ErrIdentityNotFound() *errx.Error {
	return ErrRegistry.New(CodeIdentityNotFound)
}

func ErrRefreshTokenNotFound() *errx.Error {
	return ErrRegistry.New(CodeRefreshTokenNotFound)
}

func ErrRefreshTokenNotActive() *errx.Error {
	return ErrRegistry.New(CodeRefreshTokenNotActive)
}

func ErrWeakPassword(reason string) *errx.Error {
	return ErrRegistry.New(CodeWeakPassword).WithDetail("reason", reason)
}

func ErrRefreshTokenGenerationFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeRefreshTokenGenerationFailed, cause)
}

func ErrPasswordHashFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodePasswordHashFailed, cause)
}
