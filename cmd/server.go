package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/Abraxas-365/tenantauth/pkg/logx"
	"github.com/Abraxas-365/tenantauth/pkg/metricx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/oklog/ulid/v2"
)

// newApp builds the fiber application with every route registered
func newApp(container *Container) *fiber.App {
	cfg := container.Config.Server

	app := fiber.New(fiber.Config{
		AppName:               "tenantauth",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
		BodyLimit:             cfg.BodyLimit,
		IdleTimeout:           120 * time.Second,
	})

	// Global middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: generateRequestID,
	}))
	app.Use(requestContext)

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID, Retry-After",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${locals:requestid}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Use(container.Metrics.Middleware())

	// Health & metrics
	app.Get("/health", healthCheckHandler(container))
	app.Get("/metrics", metricx.Handler(container.Registry))

	// Routes: /auth/*, /api/v1/session, /api/v1/tenants
	container.Handlers.RegisterRoutes(app, container.Middleware, container.Resolver)
	logx.Info("✓ Auth routes registered")

	app.Use(notFoundHandler)

	printRouteSummary()
	return app
}

// ============================================================================
// Handler Functions
// ============================================================================

// requestContext puts the request id into the user context so every
// logx.WithContext line of the request carries it
func requestContext(c *fiber.Ctx) error {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		c.SetUserContext(kernel.WithRequestID(c.UserContext(), id))
	}
	return c.Next()
}

// healthCheckHandler reports degraded when any backing service fails its ping
func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		health := fiber.Map{
			"status":  "healthy",
			"service": "tenantauth",
			"version": container.Config.Server.Version,
			"db":      "healthy",
		}
		if container.Redis != nil {
			health["redis"] = "healthy"
		}

		for name, err := range container.Ping(ctx) {
			health[name] = "unhealthy"
			health[name+"_error"] = err.Error()
			health["status"] = "degraded"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return errx.WriteFiber(c, errx.NotFound("The requested endpoint does not exist").
		WithDetail("path", c.Path()).
		WithDetail("method", c.Method()))
}

// ============================================================================
// Error Handler
// ============================================================================

// globalErrorHandler logs server-side failures and renders every error as
// the errx JSON envelope.
func globalErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) && errx.Normalize(err).HTTPStatus >= fiber.StatusInternalServerError {
		logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"ip":         c.IP(),
			"request_id": c.Locals("requestid"),
			"user_agent": c.Get(fiber.HeaderUserAgent),
		}).WithError(err).Error("Request error")
	}

	return errx.FiberErrorHandler(c, err)
}

// ============================================================================
// Utility Functions
// ============================================================================

// generateRequestID returns a lexicographically sortable ULID
func generateRequestID() string {
	return ulid.Make().String()
}

func printRouteSummary() {
	logx.Info("📋 Route Summary:")
	logx.Info("   ├─ Auth: /auth/login, /auth/refresh, /auth/logout, /auth/password, /auth/me")
	logx.Info("   ├─ Session: /api/v1/session")
	logx.Info("   ├─ Tenants: /api/v1/tenants")
	logx.Info("   ├─ Metrics: /metrics")
	logx.Info("   └─ Health: /health")
}

// startServer listens until SIGINT/SIGTERM, then drains in-flight requests
func startServer(app *fiber.App, port string, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logx.Infof("🚀 Server listening on port %s", port)
		logx.Infof("💚 Health Check: http://localhost:%s/health", port)
		errCh <- app.Listen(":" + port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		logx.Infof("🛑 Received signal: %v", sig)
	}

	logx.Info("Shutting down gracefully...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logx.Info("✅ Server exited successfully")
	return nil
}
