package tenantinfra

import (
	"context"
	"sort"
	"sync"

	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

// MemoryDirectory keeps tenants in a map; used by tests and the memory profile.
type MemoryDirectory struct {
	mu      sync.RWMutex
	tenants map[kernel.TenantID]tenant.Tenant
	lookups int
}

func NewMemoryDirectory(tenants ...tenant.Tenant) *MemoryDirectory {
	d := &MemoryDirectory{tenants: make(map[kernel.TenantID]tenant.Tenant)}
	for _, t := range tenants {
		d.Put(t)
	}
	return d
}

// Put inserts or replaces a tenant
func (d *MemoryDirectory) Put(t tenant.Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tenants[t.ID] = t
}

func (d *MemoryDirectory) FindByDomain(_ context.Context, domain string) (*tenant.Tenant, error) {
	d.mu.Lock()
	d.lookups++
	d.mu.Unlock()

	host := tenant.NormalizeHost(domain)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var match *tenant.Tenant
	for _, t := range d.tenants {
		if t.Domain == nil || tenant.NormalizeHost(*t.Domain) != host {
			continue
		}
		t := t
		if match == nil || (t.IsActive && !match.IsActive) {
			match = &t
		}
	}
	if match == nil {
		return nil, tenant.ErrTenantNotFound().WithDetail("domain", host)
	}
	return match, nil
}

func (d *MemoryDirectory) List(_ context.Context, opts kernel.PaginationOptions) (kernel.Paginated[tenant.Tenant], error) {
	opts = opts.Normalize()

	d.mu.RLock()
	all := make([]tenant.Tenant, 0, len(d.tenants))
	for _, t := range d.tenants {
		all = append(all, t)
	}
	d.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := opts.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + opts.PageSize
	if end > len(all) {
		end = len(all)
	}
	return kernel.NewPaginated(all[start:end], opts.Page, opts.PageSize, len(all)), nil
}

// Lookups counts FindByDomain calls
func (d *MemoryDirectory) Lookups() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookups
}
