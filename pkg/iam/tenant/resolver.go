package tenant

import (
	"context"
	"net"
	"strings"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/logx"
)

// Separator joins the super-admin prefix to the rest of the host
const Separator = "."

// Resolver maps request hosts to tenants
type Resolver struct {
	directory Directory
	prefix    string
	observer  Observer
}

type ResolverOption func(*Resolver)

// WithObserver reports every outcome, e.g. to prometheus
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		r.observer = o
	}
}

// NewResolver builds a resolver. superAdminPrefix is the leftmost host label
// of the platform console ("admin" matches "admin.example.com").
func NewResolver(directory Directory, superAdminPrefix string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		directory: directory,
		prefix:    strings.ToLower(strings.TrimSpace(superAdminPrefix)) + Separator,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the resolution for host. The super-admin prefix is checked
// first and never touches the directory. Unknown, inactive or domainless
// tenants resolve to Unresolved without error; only directory failures error.
func (r *Resolver) Resolve(ctx context.Context, host string) (Resolution, error) {
	res, err := r.resolve(ctx, host)
	if r.observer != nil {
		if err != nil {
			r.observer.ObserveResolution("error")
		} else {
			r.observer.ObserveResolution(res.Outcome())
		}
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, host string) (Resolution, error) {
	h := NormalizeHost(host)
	if h == "" {
		return Unresolved(), nil
	}

	if r.prefix != Separator && strings.HasPrefix(h, r.prefix) {
		return SuperAdmin(), nil
	}

	t, err := r.directory.FindByDomain(ctx, h)
	if err != nil {
		if errx.IsCode(err, CodeTenantNotFound) {
			return Unresolved(), nil
		}
		logx.WithContext(ctx).WithError(err).WithField("host", h).Error("tenant directory lookup failed")
		if errx.IsRetryable(err) {
			return Resolution{}, err
		}
		return Resolution{}, ErrStorageUnavailable(err)
	}

	if !t.MatchesHost(h) {
		return Unresolved(), nil
	}
	return Resolved(t.ID), nil
}

// NormalizeHost lower-cases host, strips any port and a trailing dot.
// "Shop.Example.com:8443" becomes "shop.example.com".
func NormalizeHost(host string) string {
	h := strings.TrimSpace(host)
	if h == "" {
		return ""
	}
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	h = strings.TrimPrefix(strings.TrimSuffix(h, "]"), "[")
	h = strings.TrimSuffix(h, ".")
	return strings.ToLower(h)
}
