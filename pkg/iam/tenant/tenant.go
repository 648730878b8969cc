package tenant

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

// Tenant is an isolated customer organization. Domain is optional; tenants
// without one are never matched by host.
type Tenant struct {
	ID        kernel.TenantID `json:"id"`
	Name      string          `json:"name"`
	Domain    *string         `json:"domain,omitempty"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

// MatchesHost reports whether t is routable for the already normalized host
func (t *Tenant) MatchesHost(host string) bool {
	return t != nil && t.IsActive && t.Domain != nil && NormalizeHost(*t.Domain) == host
}

// Resolution is the outcome of mapping a request host to a tenant.
// Build it with SuperAdmin, Resolved or Unresolved so it is never both
// super-admin and tenant scoped.
type Resolution struct {
	IsSuperAdmin bool             `json:"is_super_admin"`
	TenantID     *kernel.TenantID `json:"tenant_id,omitempty"`
	IsResolved   bool             `json:"is_resolved"`
}

func SuperAdmin() Resolution {
	return Resolution{IsSuperAdmin: true, IsResolved: true}
}

func Resolved(id kernel.TenantID) Resolution {
	return Resolution{TenantID: &id, IsResolved: true}
}

func Unresolved() Resolution {
	return Resolution{}
}

// Outcome is a short label used for logs and metrics
func (r Resolution) Outcome() string {
	switch {
	case r.IsSuperAdmin:
		return "super_admin"
	case r.IsResolved:
		return "tenant"
	default:
		return "unresolved"
	}
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("TENANT")

var (
	CodeTenantNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Tenant not found")
	CodeTenantNotResolved  = ErrRegistry.Register("NOT_RESOLVED", errx.TypeNotFound, http.StatusNotFound, "No tenant is served at this host")
	CodeStorageUnavailable = ErrRegistry.Register("STORAGE_UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Tenant directory is unavailable")
	CodeTenantMismatch     = ErrRegistry.Register("MISMATCH", errx.TypeAuthorization, http.StatusForbidden, "Token does not belong to this tenant")
)

func ErrTenantNotFound() *errx.Error {
	return ErrRegistry.New(CodeTenantNotFound)
}

func ErrTenantNotResolved() *errx.Error {
	return ErrRegistry.New(CodeTenantNotResolved)
}

func ErrStorageUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeStorageUnavailable, cause)
}

func ErrTenantMismatch() *errx.Error {
	return ErrRegistry.New(CodeTenantMismatch)
}
