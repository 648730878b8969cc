package auth_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789abcdef-0123456789"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newSigner(t *testing.T, clock *fakeClock) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		SecretKey: testSecret,
		Issuer:    "tenantauth",
		Audience:  "tenantauth-api",
	}, auth.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	return svc
}

func customer() *auth.Identity {
	return &auth.Identity{
		ID:       "user-1",
		TenantID: kernel.TenantIDPtr("tenant-1"),
		Email:    "c@shop.test",
		Role:     kernel.RoleCustomer,
		IsActive: true,
	}
}

func superAdmin() *auth.Identity {
	return &auth.Identity{ID: "root-1", Email: "root@platform.test", Role: kernel.RoleSuperAdmin, IsActive: true}
}

func payload(t *testing.T, token string) map[string]interface{} {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token does not have 3 segments")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return out
}

func TestNewJWTServiceRequiresSettings(t *testing.T) {
	cases := []auth.JWTConfig{
		{SecretKey: "", Issuer: "i", Audience: "a"},
		{SecretKey: "short", Issuer: "i", Audience: "a"},
		{SecretKey: testSecret, Issuer: "", Audience: "a"},
		{SecretKey: testSecret, Issuer: "i", Audience: ""},
	}
	for i, cfg := range cases {
		if _, err := auth.NewJWTService(cfg); !errx.IsCode(err, auth.CodeConfiguration) {
			t.Fatalf("case %d: expected configuration error, got %v", i, err)
		}
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newSigner(t, clock)

	token, exp, err := svc.IssueAccessToken(customer(), 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if !exp.Equal(clock.t.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != "user-1" || claims.Role != kernel.RoleCustomer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if tid := claims.Tenant(); tid == nil || *tid != "tenant-1" {
		t.Fatalf("expected tenant-1, got %v", tid)
	}
	if claims.Issuer != "tenantauth" || claims.ID == "" {
		t.Fatalf("missing registered claims: %+v", claims.RegisteredClaims)
	}
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issuedAt}
	svc := newSigner(t, clock)

	ttl := 15 * time.Minute
	token, _, err := svc.IssueAccessToken(customer(), ttl)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	clock.t = issuedAt.Add(ttl - time.Millisecond)
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("token must be valid 1ms before expiry: %v", err)
	}

	clock.t = issuedAt.Add(ttl)
	_, err = svc.Verify(token)
	if auth.VerificationKindOf(err) != auth.KindExpired {
		t.Fatalf("token must be expired exactly at exp, got %v", err)
	}
	if !errx.IsCode(err, auth.CodeTokenExpired) {
		t.Fatalf("expected AUTH_TOKEN_EXPIRED code, got %v", err)
	}
}

func TestExpiresAtMatchesSignedClaim(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 400*int(time.Millisecond), time.UTC)
	svc := newSigner(t, &fakeClock{t: issuedAt})

	token, expiresAt, err := svc.IssueAccessToken(customer(), 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	want := time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)
	if !expiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", expiresAt, want)
	}
	if exp := int64(payload(t, token)["exp"].(float64)); exp != want.Unix() {
		t.Fatalf("exp claim = %d, want %d", exp, want.Unix())
	}

	if _, _, err := svc.IssueAccessToken(customer(), 500*time.Millisecond); !errx.IsCode(err, auth.CodeTokenGenerationFailed) {
		t.Fatalf("sub-second ttl must be refused, got %v", err)
	}
}

func TestTenantClaimPresence(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newSigner(t, clock)

	rootToken, _, err := svc.IssueAccessToken(superAdmin(), time.Minute)
	if err != nil {
		t.Fatalf("issue super admin: %v", err)
	}
	if _, ok := payload(t, rootToken)["tid"]; ok {
		t.Fatalf("super admin token must not carry tid")
	}

	for _, role := range []kernel.Role{kernel.RoleCustomer, kernel.RoleProvider, kernel.RoleTenantAdmin} {
		id := customer()
		id.Role = role
		token, _, err := svc.IssueAccessToken(id, time.Minute)
		if err != nil {
			t.Fatalf("issue %s: %v", role, err)
		}
		if payload(t, token)["tid"] != "tenant-1" {
			t.Fatalf("%s token must carry tid", role)
		}
	}
}

func TestIssueRejectsInvalidIdentity(t *testing.T) {
	svc := newSigner(t, &fakeClock{t: time.Now()})

	bad := superAdmin()
	bad.TenantID = kernel.TenantIDPtr("tenant-1")
	if _, _, err := svc.IssueAccessToken(bad, time.Minute); !errx.IsCode(err, auth.CodeInvalidIdentity) {
		t.Fatalf("expected invalid identity, got %v", err)
	}

	orphan := customer()
	orphan.TenantID = nil
	if _, _, err := svc.IssueAccessToken(orphan, time.Minute); !errx.IsCode(err, auth.CodeInvalidIdentity) {
		t.Fatalf("expected invalid identity, got %v", err)
	}
}

func TestVerifyFailureKinds(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newSigner(t, clock)
	token, _, err := svc.IssueAccessToken(customer(), time.Minute)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	otherAudience, err := auth.NewJWTService(auth.JWTConfig{
		SecretKey: testSecret, Issuer: "tenantauth", Audience: "someone-else",
	}, auth.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	otherKey, err := auth.NewJWTService(auth.JWTConfig{
		SecretKey: strings.Repeat("x", 40), Issuer: "tenantauth", Audience: "tenantauth-api",
	}, auth.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1", "role": "CUSTOMER", "tid": "tenant-1",
		"iss": "tenantauth", "aud": "tenantauth-api",
		"exp": clock.t.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := []struct {
		name  string
		svc   *auth.JWTService
		token string
		want  auth.VerificationKind
	}{
		{"garbage", svc, "not-a-jwt", auth.KindMalformed},
		{"empty", svc, "", auth.KindMalformed},
		{"tampered signature", svc, tampered, auth.KindSignatureInvalid},
		{"different key", otherKey, token, auth.KindSignatureInvalid},
		{"alg none", svc, noneToken, auth.KindSignatureInvalid},
		{"audience mismatch", otherAudience, token, auth.KindIssuerOrAudienceMismatch},
	}
	for _, tc := range cases {
		_, err := tc.svc.Verify(tc.token)
		if got := auth.VerificationKindOf(err); got != tc.want {
			t.Fatalf("%s: expected %s, got %s (%v)", tc.name, tc.want, got, err)
		}
	}
}

func TestVerifyRejectsSuperAdminTokenWithTenant(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newSigner(t, clock)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "root-1", "role": "SUPER_ADMIN", "tid": "tenant-1",
		"iss": "tenantauth", "aud": "tenantauth-api",
		"exp": clock.t.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Verify(forged); auth.VerificationKindOf(err) != auth.KindMalformed {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	svc := newSigner(t, &fakeClock{t: time.Now()})

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "role": "CUSTOMER", "tid": "tenant-1",
		"iss": "tenantauth", "aud": "tenantauth-api",
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(noExp); auth.VerificationKindOf(err) != auth.KindMalformed {
		t.Fatalf("expected malformed for missing exp, got %v", err)
	}
}
