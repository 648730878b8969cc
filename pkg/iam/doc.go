// Package iam (Identity and Access Management) provides tenant-aware
// authentication and session lifecycle for a multi-tenant marketplace API.
//
// # Overview
//
//   - iam/auth          — identities, access tokens (JWT), refresh tokens, middleware
//   - iam/auth/authsrv  — the session manager: login, refresh with rotation, logout, password change
//   - iam/auth/authinfra — Postgres/Redis/in-memory refresh stores, user directory, password hashing, audit
//   - iam/auth/authapi  — Fiber handlers for the /auth routes
//   - iam/tenant        — host based tenant resolution and its middleware
//   - iam/tenant/tenantinfra — Postgres, cached and in-memory tenant directories
//
// # Architecture
//
//	HTTP Handler  →  Service Layer  →  Port (interface)  →  Infrastructure (Postgres/Redis)
//
// Each sub-domain exposes its own error registry ("AUTH", "TENANT", "IAM").
// Storage failures are always reported with type UNAVAILABLE so callers can
// tell a transient outage from a rejected credential.
//
// # Tokens
//
// Access tokens are HS256 JWTs carrying sub, role, iss, aud, iat, exp and,
// for every role except SUPER_ADMIN, the tenant id claim "tid". A token is
// valid strictly before its exp; there is no clock skew allowance.
//
// Refresh tokens are opaque 256-bit random values. Stores keep only their
// SHA-256 digest. Every refresh rotates the token: the presented one is
// revoked and linked to its successor in a single atomic step, so two
// concurrent refreshes of the same token can never both succeed.
//
// # Multi-Tenancy
//
// The tenant of a request is derived from its Host header:
//
//	admin.example.com  → super-admin console (no tenant)
//	shop.example.com   → the active tenant registered with that domain
//	unknown.example    → unresolved
//
// RequireTenantMatch ties the two together: a tenant host only accepts
// tokens issued for that tenant, the admin host only accepts SUPER_ADMIN.
//
// # Quick Start
//
//	mw := auth.NewAuthMiddleware(sessions)
//	api := app.Group("/api",
//	    tenant.Middleware(resolver),
//	    mw.Authenticate(),
//	    mw.RequireTenantMatch(),
//	)
//
// Read the authenticated context inside a handler:
//
//	authCtx, ok := auth.GetAuthContext(c)
//	if !ok { ... }
//	fmt.Println(authCtx.UserID, authCtx.Role, authCtx.TenantID)
package iam
