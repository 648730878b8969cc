package auth

import (
	"strings"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/iam"
	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/Abraxas-365/tenantauth/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// LocalsKey es donde Authenticate guarda el *kernel.AuthContext
const LocalsKey = "auth"

// TokenMiddleware middleware para autenticación JWT con Fiber
type TokenMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware crea un nuevo middleware de autenticación
func NewAuthMiddleware(verifier TokenVerifier) *TokenMiddleware {
	return &TokenMiddleware{verifier: verifier}
}

// bearerToken extrae el token de "Authorization: Bearer <token>"
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate valida el access token. Sin cabecera o con un token inválido
// responde 401 y no llama al siguiente handler. El motivo exacto solo queda
// en los logs del servidor.
func (am *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return errx.WriteFiber(c, iam.ErrUnauthorized())
		}

		claims, err := am.verifier.VerifyAccessToken(token)
		if err != nil {
			entry := logx.WithContext(c.UserContext()).
				WithError(err).
				WithFields(logx.Fields{"path": c.Path(), "ip": c.IP()})
			kind := VerificationKindOf(err)
			switch {
			case kind.Expected():
				entry.WithField("reason", kind).Debug("access token rejected")
			case kind != "":
				entry.WithField("reason", kind).Warn("access token rejected")
			default:
				entry.Error("access token verification failed")
			}
			return errx.WriteFiber(c, iam.ErrInvalidToken())
		}

		authContext := claims.AuthContext()
		c.Locals(LocalsKey, authContext)
		c.SetUserContext(kernel.WithAuthContext(c.UserContext(), authContext))

		return c.Next()
	}
}

// GetAuthContext devuelve el contexto guardado por Authenticate
func GetAuthContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ac, ok := c.Locals(LocalsKey).(*kernel.AuthContext)
	return ac, ok && ac != nil
}

// RequireRole middleware que exige alguno de los roles indicados
func (am *TokenMiddleware) RequireRole(roles ...kernel.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := GetAuthContext(c)
		if !ok {
			return errx.WriteFiber(c, iam.ErrUnauthorized())
		}
		if !ac.HasRole(roles...) {
			return errx.WriteFiber(c, iam.ErrAccessDenied())
		}
		return c.Next()
	}
}

// RequireSuperAdmin middleware que requiere el rol SUPER_ADMIN
func (am *TokenMiddleware) RequireSuperAdmin() fiber.Handler {
	return am.RequireRole(kernel.RoleSuperAdmin)
}

// RequireTenantMatch cruza el tenant resuelto por host con el del token.
// Debe ir después de tenant.Middleware y Authenticate.
//
//	host de consola → solo SUPER_ADMIN
//	host de tenant  → tokens de ese tenant, o SUPER_ADMIN
//	host sin tenant → 404
func (am *TokenMiddleware) RequireTenantMatch() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := GetAuthContext(c)
		if !ok {
			return errx.WriteFiber(c, iam.ErrUnauthorized())
		}

		res, ok := tenant.ResolutionFrom(c)
		if !ok || !res.IsResolved {
			return errx.WriteFiber(c, tenant.ErrTenantNotResolved())
		}

		if res.IsSuperAdmin {
			if !ac.IsSuperAdmin() {
				return errx.WriteFiber(c, iam.ErrAccessDenied())
			}
			return c.Next()
		}

		if !ac.CanAccessTenant(*res.TenantID) {
			logx.WithContext(c.UserContext()).
				WithField("host_tenant_id", res.TenantID.String()).
				Warn("token used against another tenant")
			return errx.WriteFiber(c, tenant.ErrTenantMismatch())
		}
		return c.Next()
	}
}
