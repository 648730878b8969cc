package tenantinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// CachedDirectory puts a TTL cache in front of another directory. Misses are
// cached too, so an unmapped custom domain does not hit the database on every
// request. Concurrent lookups of the same domain share one backend call.
type CachedDirectory struct {
	next  tenant.Directory
	cache *ttlcache.Cache[string, *tenant.Tenant]
	group singleflight.Group
}

// NewCachedDirectory starts the cache janitor; call Close to stop it.
func NewCachedDirectory(next tenant.Directory, ttl time.Duration, capacity uint64) *CachedDirectory {
	opts := []ttlcache.Option[string, *tenant.Tenant]{
		ttlcache.WithTTL[string, *tenant.Tenant](ttl),
		ttlcache.WithDisableTouchOnHit[string, *tenant.Tenant](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *tenant.Tenant](capacity))
	}

	cache := ttlcache.New(opts...)
	go cache.Start()

	return &CachedDirectory{next: next, cache: cache}
}

// FindByDomain serves from cache; a cached nil means "known not to exist".
// Storage errors are never cached.
func (d *CachedDirectory) FindByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	key := tenant.NormalizeHost(domain)

	if item := d.cache.Get(key); item != nil {
		if t := item.Value(); t != nil {
			cp := *t
			return &cp, nil
		}
		return nil, tenant.ErrTenantNotFound().WithDetail("domain", key)
	}

	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		t, err := d.next.FindByDomain(ctx, key)
		if err != nil {
			if errx.IsCode(err, tenant.CodeTenantNotFound) {
				d.cache.Set(key, nil, ttlcache.DefaultTTL)
			}
			return nil, err
		}
		d.cache.Set(key, t, ttlcache.DefaultTTL)
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	cp := *(v.(*tenant.Tenant))
	return &cp, nil
}

// List is not cached
func (d *CachedDirectory) List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[tenant.Tenant], error) {
	return d.next.List(ctx, opts)
}

// Invalidate drops a domain after its tenant was changed
func (d *CachedDirectory) Invalidate(domain string) {
	d.cache.Delete(tenant.NormalizeHost(domain))
}

// InvalidateAll empties the cache
func (d *CachedDirectory) InvalidateAll() {
	d.cache.DeleteAll()
}

// Len is the number of cached domains, hits and misses
func (d *CachedDirectory) Len() int {
	return d.cache.Len()
}

// Close stops the expiration janitor
func (d *CachedDirectory) Close() {
	d.cache.Stop()
}
