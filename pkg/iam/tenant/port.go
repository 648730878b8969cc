package tenant

import (
	"context"

	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

// Directory is the registry of tenants. FindByDomain matches the normalized
// host case-insensitively, may return inactive tenants, and returns
// TENANT_NOT_FOUND when nothing matches.
type Directory interface {
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)
	List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[Tenant], error)
}

// Observer receives one call per resolution with Resolution.Outcome or "error"
type Observer interface {
	ObserveResolution(outcome string)
}
