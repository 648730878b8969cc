package authsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/Abraxas-365/tenantauth/pkg/logx"
)

const tokenTypeBearer = "Bearer"

// SessionManager runs login, refresh rotation, logout and password changes
// on top of a user directory and a refresh store. It holds no session state
// of its own; concurrent refreshes are arbitrated by the store.
type SessionManager struct {
	users  auth.UserDirectory
	store  auth.RefreshStore
	signer auth.TokenSigner
	hasher auth.PasswordHasher
	audit  auth.AuditService

	accessTTL   time.Duration
	refreshTTL  time.Duration
	minPassword int
	reuse       ReuseResponse
	reuseGrace  time.Duration
	serial      *keyedMutex
	now         func() time.Time
}

func NewSessionManager(
	users auth.UserDirectory,
	store auth.RefreshStore,
	signer auth.TokenSigner,
	hasher auth.PasswordHasher,
	opts ...Option,
) *SessionManager {
	m := &SessionManager{
		users:       users,
		store:       store,
		signer:      signer,
		hasher:      hasher,
		audit:       auth.NopAudit{},
		accessTTL:   DefaultAccessTTL,
		refreshTTL:  DefaultRefreshTTL,
		minPassword: DefaultPasswordMinLength,
		reuse:       ReuseReject,
		reuseGrace:  DefaultReuseGrace,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessTTL is the lifetime of issued access tokens
func (m *SessionManager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL is the lifetime of issued refresh tokens
func (m *SessionManager) RefreshTTL() time.Duration { return m.refreshTTL }

// ============================================================================
// Authenticate
// ============================================================================

// Authenticate checks email and password and opens a new session.
// Unknown email, inactive identity and wrong password all fail with the same
// INVALID_CREDENTIALS error, and all three pay for one hash comparison.
func (m *SessionManager) Authenticate(ctx context.Context, email, password, ip string) (*auth.LoginResult, error) {
	normalized := auth.NormalizeEmail(email)

	identity, err := m.users.FindByEmail(ctx, normalized)
	if err != nil {
		if errx.IsCode(err, auth.CodeIdentityNotFound) {
			m.hasher.Verify(password, "")
			m.audit.LogLoginAttempt(ctx, normalized, nil, false, ip)
			return nil, auth.ErrInvalidCredentials()
		}
		logx.WithContext(ctx).WithError(err).Error("user lookup failed during login")
		return nil, asStorageError(err)
	}

	passwordOK := m.hasher.Verify(password, identity.PasswordHash)
	if !identity.IsActive || !passwordOK {
		logx.WithContext(ctx).WithFields(logx.Fields{
			"user_id": identity.ID.String(),
			"ip":      ip,
		}).Debug("login rejected")
		m.audit.LogLoginAttempt(ctx, normalized, nil, false, ip)
		return nil, auth.ErrInvalidCredentials()
	}

	if err := m.users.UpdateLastLogin(ctx, identity.ID, m.now().UTC()); err != nil {
		logx.WithContext(ctx).WithError(err).Error("failed to record last login")
		return nil, asStorageError(err)
	}

	tokens, err := m.openSession(ctx, identity, ip)
	if err != nil {
		return nil, err
	}

	m.audit.LogLoginAttempt(ctx, normalized, identity, true, ip)
	identity.PasswordHash = ""
	return &auth.LoginResult{Identity: identity, Tokens: *tokens}, nil
}

func (m *SessionManager) openSession(ctx context.Context, identity *auth.Identity, ip string) (*auth.TokenPair, error) {
	access, accessExp, err := m.signer.IssueAccessToken(identity, m.accessTTL)
	if err != nil {
		logx.WithContext(ctx).WithError(err).Error("failed to sign access token")
		return nil, err
	}

	rt, err := m.store.Issue(ctx, identity.ID, ip, m.refreshTTL)
	if err != nil {
		logx.WithContext(ctx).WithError(err).Error("failed to issue refresh token")
		return nil, err
	}

	return &auth.TokenPair{
		AccessToken:      access,
		TokenType:        tokenTypeBearer,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rt.Token,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

// ============================================================================
// Refresh
// ============================================================================

// Refresh exchanges an active refresh token for a new pair. The presented
// token is revoked and linked to its successor. Of several concurrent calls
// with the same token exactly one succeeds.
func (m *SessionManager) Refresh(ctx context.Context, tokenValue, ip string) (*auth.TokenPair, error) {
	if tokenValue == "" {
		return nil, auth.ErrInvalidOrExpiredToken()
	}

	if m.serial != nil {
		unlock := m.serial.Lock(auth.HashRefreshToken(tokenValue))
		defer unlock()
	}

	rt, err := m.store.Lookup(ctx, tokenValue)
	if err != nil {
		if errx.IsCode(err, auth.CodeRefreshTokenNotFound) {
			m.audit.LogTokenRefresh(ctx, nil, false, ip)
			return nil, auth.ErrInvalidOrExpiredToken()
		}
		logx.WithContext(ctx).WithError(err).Error("refresh token lookup failed")
		return nil, err
	}

	if now := m.now(); !rt.IsActive(now) {
		if m.isReuse(rt, now) {
			m.handleReuse(ctx, rt, ip)
		}
		m.audit.LogTokenRefresh(ctx, nil, false, ip)
		return nil, auth.ErrInvalidOrExpiredToken()
	}

	identity, err := m.users.FindByID(ctx, rt.UserID)
	if err != nil {
		if errx.IsCode(err, auth.CodeIdentityNotFound) {
			m.audit.LogTokenRefresh(ctx, nil, false, ip)
			return nil, auth.ErrInvalidOrExpiredToken()
		}
		logx.WithContext(ctx).WithError(err).Error("user lookup failed during refresh")
		return nil, asStorageError(err)
	}
	if !identity.IsActive {
		m.audit.LogTokenRefresh(ctx, identity, false, ip)
		return nil, auth.ErrInvalidOrExpiredToken()
	}

	// Sign before rotating so a signing failure leaves the presented token usable
	access, accessExp, err := m.signer.IssueAccessToken(identity, m.accessTTL)
	if err != nil {
		logx.WithContext(ctx).WithError(err).Error("failed to sign access token")
		return nil, err
	}

	next, err := m.store.Rotate(ctx, tokenValue, ip, m.refreshTTL)
	if err != nil {
		if errx.IsCode(err, auth.CodeRefreshTokenNotActive) {
			logx.WithContext(ctx).WithField("token_id", rt.ID).Debug("lost refresh rotation race")
			m.audit.LogTokenRefresh(ctx, identity, false, ip)
			return nil, auth.ErrInvalidOrExpiredToken()
		}
		logx.WithContext(ctx).WithError(err).Error("refresh token rotation failed")
		return nil, err
	}

	m.audit.LogTokenRefresh(ctx, identity, true, ip)
	return &auth.TokenPair{
		AccessToken:      access,
		TokenType:        tokenTypeBearer,
		AccessExpiresAt:  accessExp,
		RefreshToken:     next.Token,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// isReuse is true for a rotated token presented after the grace window.
// Losers of a concurrent refresh land inside the window and are only rejected.
func (m *SessionManager) isReuse(rt *auth.RefreshToken, now time.Time) bool {
	if !rt.WasRotated() {
		return false
	}
	return now.Sub(*rt.RevokedAt) >= m.reuseGrace
}

// handleReuse runs when a token that was exchanged a while ago comes back.
// Under ReuseRevokeChain every token it was rotated into is revoked, which
// ends the session the leaked token belonged to.
func (m *SessionManager) handleReuse(ctx context.Context, rt *auth.RefreshToken, ip string) {
	revoked := 0
	if m.reuse == ReuseRevokeChain {
		n, err := m.store.RevokeSuccessors(ctx, rt, ip)
		if err != nil {
			logx.WithContext(ctx).WithError(err).WithField("user_id", rt.UserID.String()).
				Error("failed to revoke rotation chain after refresh token reuse")
		}
		revoked = n
	}
	m.audit.LogRefreshReuse(ctx, rt, ip, revoked)
}

// ============================================================================
// Logout
// ============================================================================

// Logout revokes the refresh token. It reports whether this call revoked it;
// unknown or already inactive tokens are not an error.
func (m *SessionManager) Logout(ctx context.Context, tokenValue, ip string) (bool, error) {
	if tokenValue == "" {
		m.audit.LogLogout(ctx, false, ip)
		return false, nil
	}
	revoked, err := m.store.Revoke(ctx, tokenValue, ip)
	if err != nil {
		logx.WithContext(ctx).WithError(err).Error("refresh token revocation failed")
		return false, err
	}
	m.audit.LogLogout(ctx, revoked, ip)
	return revoked, nil
}

// ============================================================================
// ChangePassword
// ============================================================================

// ChangePassword revokes every active session of the user and then stores
// the new password hash. Revocation happens first: if it fails the password
// is left unchanged. Returns the number of sessions revoked.
func (m *SessionManager) ChangePassword(ctx context.Context, userID kernel.UserID, newPassword, ip string) (int, error) {
	if len(newPassword) < m.minPassword {
		return 0, auth.ErrWeakPassword("too short").WithDetail("min_length", m.minPassword)
	}
	if len(newPassword) > passwordMaxLength {
		return 0, auth.ErrWeakPassword("too long").WithDetail("max_length", passwordMaxLength)
	}

	if _, err := m.users.FindByID(ctx, userID); err != nil {
		if !errx.IsCode(err, auth.CodeIdentityNotFound) {
			logx.WithContext(ctx).WithError(err).Error("user lookup failed during password change")
			return 0, asStorageError(err)
		}
		return 0, err
	}

	revoked, err := m.store.RevokeAllForUser(ctx, userID, ip)
	if err != nil {
		logx.WithContext(ctx).WithError(err).Error("failed to revoke sessions before password change")
		return 0, err
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return revoked, err
	}
	if err := m.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		logx.WithContext(ctx).WithError(err).Error("failed to store new password hash")
		return revoked, asStorageError(err)
	}

	m.audit.LogPasswordChanged(ctx, userID, revoked, ip)
	return revoked, nil
}

// ============================================================================
// Access tokens
// ============================================================================

// ValidateAccessToken reports whether token verifies
func (m *SessionManager) ValidateAccessToken(token string) bool {
	_, err := m.signer.Verify(token)
	return err == nil
}

// VerifyAccessToken returns the verified claims or a *auth.TokenVerificationError
func (m *SessionManager) VerifyAccessToken(token string) (*auth.AccessClaims, error) {
	return m.signer.Verify(token)
}

// asStorageError keeps coded directory errors and wraps anything else
func asStorageError(err error) error {
	var e *errx.Error
	if errx.As(err, &e) && e.Code != "" {
		return err
	}
	return auth.ErrStorageUnavailable(err)
}
