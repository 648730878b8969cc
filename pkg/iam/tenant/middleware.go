package tenant

import (
	"strings"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// LocalsKey is where Middleware stores the Resolution
const LocalsKey = "tenant_resolution"

// Middleware resolves the tenant from the Host header and stores the result
// for downstream handlers. Unresolved hosts pass through; use RequireResolved
// on routes that need a tenant. X-Forwarded-Host is never consulted.
func Middleware(resolver *Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := resolver.Resolve(c.UserContext(), requestHost(c))
		if err != nil {
			return errx.WriteFiber(c, errx.Normalize(err))
		}

		c.Locals(LocalsKey, res)
		if res.TenantID != nil {
			c.SetUserContext(kernel.WithTenantID(c.UserContext(), *res.TenantID))
		}
		return c.Next()
	}
}

// ResolutionFrom returns the resolution stored by Middleware
func ResolutionFrom(c *fiber.Ctx) (Resolution, bool) {
	res, ok := c.Locals(LocalsKey).(Resolution)
	return res, ok
}

// RequireResolved rejects requests whose host maps to neither the console nor a tenant
func RequireResolved() fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, ok := ResolutionFrom(c)
		if !ok || !res.IsResolved {
			return errx.WriteFiber(c, ErrTenantNotResolved().WithDetail("host", requestHost(c)))
		}
		return c.Next()
	}
}

// HostFromRequest normalizes a raw Host header value. Anything after a comma
// is ignored.
func HostFromRequest(hostHeader string) string {
	first, _, _ := strings.Cut(hostHeader, ",")
	return NormalizeHost(first)
}

// requestHost reads the Host header itself. fiber's Hostname prefers
// X-Forwarded-Host, which any client can set.
func requestHost(c *fiber.Ctx) string {
	return HostFromRequest(string(c.Request().Host()))
}
