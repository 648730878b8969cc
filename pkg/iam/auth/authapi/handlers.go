package authapi

import (
	"context"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/iam"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/Abraxas-365/tenantauth/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// SessionService is the part of the session manager the handlers call
type SessionService interface {
	Authenticate(ctx context.Context, email, password, ip string) (*auth.LoginResult, error)
	Refresh(ctx context.Context, tokenValue, ip string) (*auth.TokenPair, error)
	Logout(ctx context.Context, tokenValue, ip string) (bool, error)
	ChangePassword(ctx context.Context, userID kernel.UserID, newPassword, ip string) (int, error)
}

// Handlers is the thin HTTP layer over the session manager. Errors are
// returned to the app error handler, which renders them with errx.
type Handlers struct {
	sessions SessionService
	tenants  tenant.Directory
	limiter  *IPLimiter
}

func NewHandlers(sessions SessionService, tenants tenant.Directory, limiter *IPLimiter) *Handlers {
	if limiter == nil {
		limiter = NewIPLimiter(0, 1)
	}
	return &Handlers{sessions: sessions, tenants: tenants, limiter: limiter}
}

// RegisterRoutes mounts the auth and session routes.
//
//	POST /auth/login, /auth/refresh, /auth/logout       public
//	POST /auth/password, GET /auth/me                    bearer token
//	GET  /api/v1/session                                 bearer token bound to the host's tenant
//	GET  /api/v1/tenants                                 super admin
func (h *Handlers) RegisterRoutes(app fiber.Router, mw *auth.TokenMiddleware, resolver *tenant.Resolver) {
	a := app.Group("/auth")
	a.Post("/login", h.Login)
	a.Post("/refresh", h.Refresh)
	a.Post("/logout", h.Logout)
	a.Post("/password", mw.Authenticate(), h.ChangePassword)
	a.Get("/me", mw.Authenticate(), h.Me)

	api := app.Group("/api/v1")
	api.Get("/session", tenant.Middleware(resolver), mw.Authenticate(), mw.RequireTenantMatch(), h.Session)
	api.Get("/tenants", mw.Authenticate(), mw.RequireSuperAdmin(), h.ListTenants)
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return errx.Validation("invalid request body").WithCause(err)
	}
	return nil
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	if !h.limiter.Allow(c.IP()) {
		logx.WithContext(c.UserContext()).WithField("ip", c.IP()).Warn("login rate limit exceeded")
		return iam.ErrRateLimited()
	}

	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return errx.Validation("email and password are required")
	}

	res, err := h.sessions.Authenticate(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(LoginResponse{Identity: res.Identity, TokenPair: res.Tokens})
}

func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	pair, err := h.sessions.Refresh(c.UserContext(), req.RefreshToken, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

func (h *Handlers) Logout(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	revoked, err := h.sessions.Logout(c.UserContext(), req.RefreshToken, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(LogoutResponse{Revoked: revoked})
}

func (h *Handlers) ChangePassword(c *fiber.Ctx) error {
	ac, ok := auth.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	var req ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	n, err := h.sessions.ChangePassword(c.UserContext(), ac.UserID, req.NewPassword, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(ChangePasswordResponse{RevokedSessions: n})
}

func (h *Handlers) Me(c *fiber.Ctx) error {
	ac, ok := auth.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	return c.JSON(meFrom(ac))
}

func (h *Handlers) Session(c *fiber.Ctx) error {
	ac, ok := auth.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	res, _ := tenant.ResolutionFrom(c)
	return c.JSON(SessionResponse{MeResponse: meFrom(ac), Resolution: res.Outcome()})
}

func (h *Handlers) ListTenants(c *fiber.Ctx) error {
	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", kernel.DefaultPageSize),
	}.Normalize()

	page, err := h.tenants.List(c.UserContext(), opts)
	if err != nil {
		return err
	}
	return c.JSON(page)
}
