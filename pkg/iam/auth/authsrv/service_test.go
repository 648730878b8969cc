package authsrv_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Fixtures
// ============================================================================

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingHasher records how many comparisons ran
type countingHasher struct {
	*authinfra.PasswordService
	verifies atomic.Int32
}

func (h *countingHasher) Verify(plain, hash string) bool {
	h.verifies.Add(1)
	return h.PasswordService.Verify(plain, hash)
}

type recordingAudit struct {
	auth.NopAudit
	mu       sync.Mutex
	logins   []bool
	reuses   []int
	changes  []int
	refreshs []bool
}

func (a *recordingAudit) LogLoginAttempt(_ context.Context, _ string, _ *auth.Identity, success bool, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins = append(a.logins, success)
}

func (a *recordingAudit) LogTokenRefresh(_ context.Context, _ *auth.Identity, success bool, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshs = append(a.refreshs, success)
}

func (a *recordingAudit) LogRefreshReuse(_ context.Context, _ *auth.RefreshToken, _ string, revoked int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reuses = append(a.reuses, revoked)
}

func (a *recordingAudit) LogPasswordChanged(_ context.Context, _ kernel.UserID, revoked int, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changes = append(a.changes, revoked)
}

type fixture struct {
	clock   *clock
	users   *authinfra.MemoryUserDirectory
	store   *authinfra.MemoryRefreshStore
	signer  *auth.JWTService
	hasher  *countingHasher
	audit   *recordingAudit
	manager *authsrv.SessionManager
}

const password = "correct-horse-battery"

func newFixture(t *testing.T, opts ...authsrv.Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:  &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
		hasher: &countingHasher{PasswordService: authinfra.NewBcryptPasswordService(bcrypt.MinCost)},
		audit:  &recordingAudit{},
	}

	signer, err := auth.NewJWTService(auth.JWTConfig{
		SecretKey: "session-test-secret-0123456789abcdef",
		Issuer:    "tenantauth",
		Audience:  "tenantauth-api",
	}, auth.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.signer = signer

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	f.users = authinfra.NewMemoryUserDirectory(
		auth.Identity{ID: "u1", TenantID: kernel.TenantIDPtr("t1"), Email: "Ana@Shop.test", Role: kernel.RoleCustomer, IsActive: true, PasswordHash: hash},
		auth.Identity{ID: "u2", TenantID: kernel.TenantIDPtr("t1"), Email: "off@shop.test", Role: kernel.RoleProvider, IsActive: false, PasswordHash: hash},
		auth.Identity{ID: "root", Email: "root@platform.test", Role: kernel.RoleSuperAdmin, IsActive: true, PasswordHash: hash},
	)
	f.store = authinfra.NewMemoryRefreshStore(authinfra.WithMemoryClock(f.clock.Now))

	base := []authsrv.Option{
		authsrv.WithClock(f.clock.Now),
		authsrv.WithAudit(f.audit),
		authsrv.WithAccessTTL(10 * time.Minute),
		authsrv.WithRefreshTTL(24 * time.Hour),
	}
	f.manager = authsrv.NewSessionManager(f.users, f.store, f.signer, f.hasher, append(base, opts...)...)
	return f
}

func (f *fixture) login(t *testing.T) *auth.LoginResult {
	t.Helper()
	res, err := f.manager.Authenticate(context.Background(), "ana@shop.test", password, "10.0.0.1")
	require.NoError(t, err)
	return res
}

// ============================================================================
// Authenticate
// ============================================================================

func TestAuthenticateIssuesTokenPair(t *testing.T) {
	f := newFixture(t)

	res, err := f.manager.Authenticate(context.Background(), "  ANA@shop.TEST ", password, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, kernel.UserID("u1"), res.Identity.ID)
	assert.Empty(t, res.Identity.PasswordHash)
	assert.Equal(t, "Bearer", res.Tokens.TokenType)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), res.Tokens.AccessExpiresAt)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), res.Tokens.RefreshExpiresAt)

	claims, err := f.manager.VerifyAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, kernel.UserID("u1"), claims.UserID())
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, "t1", *claims.TenantID)

	stored, err := f.users.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, f.clock.Now(), *stored.LastLoginAt)

	assert.Equal(t, []bool{true}, f.audit.logins)
}

func TestAuthenticateSuperAdminTokenHasNoTenant(t *testing.T) {
	f := newFixture(t)

	res, err := f.manager.Authenticate(context.Background(), "root@platform.test", password, "")
	require.NoError(t, err)

	claims, err := f.manager.VerifyAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, claims.TenantID)
	assert.Equal(t, kernel.RoleSuperAdmin, claims.Role)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	cases := map[string]struct {
		email    string
		password string
	}{
		"unknown email":     {"ghost@shop.test", password},
		"wrong password":    {"ana@shop.test", "not-the-password"},
		"inactive identity": {"off@shop.test", password},
	}

	var first *errx.Error
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			before := f.hasher.verifies.Load()

			res, err := f.manager.Authenticate(context.Background(), tc.email, tc.password, "10.0.0.1")
			assert.Nil(t, res)
			require.True(t, errx.IsCode(err, auth.CodeInvalidCredentials), "got %v", err)
			assert.Equal(t, int32(1), f.hasher.verifies.Load()-before, "every path runs one comparison")

			var e *errx.Error
			require.True(t, errx.As(err, &e))
			if first == nil {
				first = e
			} else {
				assert.Equal(t, first.Message, e.Message)
				assert.Equal(t, first.HTTPStatus, e.HTTPStatus)
				assert.Equal(t, first.Details, e.Details)
			}
			assert.Zero(t, f.store.Len())
		})
	}
}

type failingUsers struct {
	*authinfra.MemoryUserDirectory
	err error
}

func (u failingUsers) FindByEmail(context.Context, string) (*auth.Identity, error) {
	return nil, u.err
}

func (u failingUsers) FindByID(context.Context, kernel.UserID) (*auth.Identity, error) {
	return nil, u.err
}

func TestAuthenticateStorageFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	users := failingUsers{MemoryUserDirectory: f.users, err: errors.New("connection refused")}
	m := authsrv.NewSessionManager(users, f.store, f.signer, f.hasher)

	_, err := m.Authenticate(context.Background(), "ana@shop.test", password, "")
	assert.True(t, errx.IsCode(err, auth.CodeStorageUnavailable))
	assert.True(t, errx.IsRetryable(err))
	assert.False(t, errx.IsCode(err, auth.CodeInvalidCredentials))
}

// ============================================================================
// Refresh
// ============================================================================

func TestRefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	f.clock.Advance(time.Minute)

	pair, err := f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)
	assert.True(t, f.manager.ValidateAccessToken(pair.AccessToken))

	old, err := f.store.Lookup(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.True(t, old.WasRotated())

	next, err := f.store.Lookup(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, next.ID, *old.ReplacedBy)
	assert.Equal(t, []bool{true}, f.audit.refreshs)
}

func TestRefreshRejectsUnknownAndEmpty(t *testing.T) {
	f := newFixture(t)

	for _, value := range []string{"", "never-issued"} {
		_, err := f.manager.Refresh(context.Background(), value, "")
		assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken))
	}
}

func TestRefreshRejectsExpiredWithoutReuse(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	f.clock.Advance(24 * time.Hour)
	_, err := f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken))
	assert.Empty(t, f.audit.reuses)
}

func TestRefreshRejectsInactiveIdentity(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	u, _ := f.users.FindByID(context.Background(), "u1")
	u.IsActive = false
	f.users.Put(*u)

	_, err := f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken))

	rt, _ := f.store.Lookup(context.Background(), res.Tokens.RefreshToken)
	assert.True(t, rt.IsActive(f.clock.Now()), "a rejected refresh does not consume the token")
}

func TestRefreshReuseRevokesChain(t *testing.T) {
	f := newFixture(t, authsrv.WithReuseResponse(authsrv.ReuseRevokeChain))
	res := f.login(t)
	otherDevice := f.login(t)

	pair, err := f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	require.NoError(t, err)

	f.clock.Advance(authsrv.DefaultReuseGrace)
	_, err = f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "10.6.6.6")
	assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken))
	assert.Equal(t, []int{1}, f.audit.reuses)

	_, err = f.manager.Refresh(context.Background(), pair.RefreshToken, "")
	assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken), "successor was revoked with the chain")

	_, err = f.manager.Refresh(context.Background(), otherDevice.Tokens.RefreshToken, "")
	assert.NoError(t, err, "sessions outside the chain survive")
}

func TestRefreshReuseRejectKeepsSuccessor(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	pair, err := f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken))
	assert.Equal(t, []int{0}, f.audit.reuses)

	_, err = f.manager.Refresh(context.Background(), pair.RefreshToken, "")
	assert.NoError(t, err)
}

func TestRefreshRetryWithinGraceIsNotReuse(t *testing.T) {
	f := newFixture(t, authsrv.WithReuseResponse(authsrv.ReuseRevokeChain))
	res := f.login(t)

	pair, err := f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	require.NoError(t, err)

	f.clock.Advance(authsrv.DefaultReuseGrace - time.Second)
	_, err = f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken))
	assert.Empty(t, f.audit.reuses)

	_, err = f.manager.Refresh(context.Background(), pair.RefreshToken, "")
	assert.NoError(t, err)
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	for name, opts := range map[string][]authsrv.Option{
		"atomic store":         nil,
		"serialized":           {authsrv.WithSerializedRefresh()},
		"revoke chain":         {authsrv.WithReuseResponse(authsrv.ReuseRevokeChain)},
		"revoke chain, serial": {authsrv.WithReuseResponse(authsrv.ReuseRevokeChain), authsrv.WithSerializedRefresh()},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, opts...)
			res := f.login(t)

			const callers = 20
			var rejected atomic.Int32
			var mu sync.Mutex
			var winners []*auth.TokenPair
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					pair, err := f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
					switch {
					case err == nil:
						mu.Lock()
						winners = append(winners, pair)
						mu.Unlock()
					case errx.IsCode(err, auth.CodeInvalidOrExpiredToken):
						rejected.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			require.Len(t, winners, 1)
			assert.Equal(t, int32(callers-1), rejected.Load())
			assert.Empty(t, f.audit.reuses, "losing a race is not reuse")

			_, err := f.manager.Refresh(context.Background(), winners[0].RefreshToken, "")
			assert.NoError(t, err, "the winner's token still refreshes")
		})
	}
}

type failingSigner struct {
	*auth.JWTService
	fail bool
}

func (s *failingSigner) IssueAccessToken(identity *auth.Identity, ttl time.Duration) (string, time.Time, error) {
	if s.fail {
		return "", time.Time{}, auth.ErrTokenGenerationFailed()
	}
	return s.JWTService.IssueAccessToken(identity, ttl)
}

func TestRefreshSigningFailureKeepsTokenUsable(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	signer := &failingSigner{JWTService: f.signer, fail: true}
	m := authsrv.NewSessionManager(f.users, f.store, signer, f.hasher, authsrv.WithClock(f.clock.Now))

	_, err := m.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	assert.True(t, errx.IsCode(err, auth.CodeTokenGenerationFailed))

	signer.fail = false
	_, err = m.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	assert.NoError(t, err)
}

// ============================================================================
// Logout
// ============================================================================

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	revoked, err := f.manager.Logout(context.Background(), res.Tokens.RefreshToken, "")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = f.manager.Logout(context.Background(), res.Tokens.RefreshToken, "")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = f.manager.Logout(context.Background(), "unknown", "")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = f.manager.Refresh(context.Background(), res.Tokens.RefreshToken, "")
	assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken))
	assert.Empty(t, f.audit.reuses, "a logged out token is not a reuse")
}

// ============================================================================
// ChangePassword
// ============================================================================

func TestChangePasswordRevokesEverySession(t *testing.T) {
	f := newFixture(t)
	a := f.login(t)
	b := f.login(t)

	n, err := f.manager.ChangePassword(context.Background(), "u1", "a-brand-new-pass", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{2}, f.audit.changes)

	for _, rt := range []string{a.Tokens.RefreshToken, b.Tokens.RefreshToken} {
		_, err := f.manager.Refresh(context.Background(), rt, "")
		assert.True(t, errx.IsCode(err, auth.CodeInvalidOrExpiredToken))
	}

	_, err = f.manager.Authenticate(context.Background(), "ana@shop.test", password, "")
	assert.True(t, errx.IsCode(err, auth.CodeInvalidCredentials))
	_, err = f.manager.Authenticate(context.Background(), "ana@shop.test", "a-brand-new-pass", "")
	assert.NoError(t, err)
}

func TestChangePasswordPolicy(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	for _, pw := range []string{"short", string(make([]byte, 73))} {
		_, err := f.manager.ChangePassword(context.Background(), "u1", pw, "")
		assert.True(t, errx.IsCode(err, auth.CodeWeakPassword))
		assert.Equal(t, errx.TypeValidation, errx.TypeOf(err))
	}

	_, err := f.manager.ChangePassword(context.Background(), "nobody", "long-enough-pass", "")
	assert.True(t, errx.IsCode(err, auth.CodeIdentityNotFound))
}

type failingRevokeStore struct {
	*authinfra.MemoryRefreshStore
}

func (failingRevokeStore) RevokeAllForUser(context.Context, kernel.UserID, string) (int, error) {
	return 0, auth.ErrStorageUnavailable(errors.New("write timeout"))
}

func TestChangePasswordAbortsWhenRevocationFails(t *testing.T) {
	f := newFixture(t)
	store := failingRevokeStore{MemoryRefreshStore: f.store}
	m := authsrv.NewSessionManager(f.users, store, f.signer, f.hasher, authsrv.WithClock(f.clock.Now))

	_, err := m.ChangePassword(context.Background(), "u1", "a-brand-new-pass", "")
	assert.True(t, errx.IsCode(err, auth.CodeStorageUnavailable))

	_, err = m.Authenticate(context.Background(), "ana@shop.test", password, "")
	assert.NoError(t, err, "old password still works")
}

func TestParseReuseResponse(t *testing.T) {
	assert.Equal(t, authsrv.ReuseReject, authsrv.ParseReuseResponse("reject"))
	assert.Equal(t, authsrv.ReuseRevokeChain, authsrv.ParseReuseResponse("revoke_chain"))
	assert.Equal(t, authsrv.ReuseReject, authsrv.ParseReuseResponse(""))
	assert.Equal(t, "revoke_chain", authsrv.ReuseRevokeChain.String())
}
