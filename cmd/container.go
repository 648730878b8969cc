// cmd/container.go
//
// Composition root. Owns infrastructure (DB, Redis) and wires the session
// core, tenant resolution, metrics and HTTP handlers.
package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/asyncx"
	"github.com/Abraxas-365/tenantauth/pkg/config"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth/authapi"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant"
	"github.com/Abraxas-365/tenantauth/pkg/iam/tenant/tenantinfra"
	"github.com/Abraxas-365/tenantauth/pkg/logx"
	"github.com/Abraxas-365/tenantauth/pkg/metricx"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the wired services.
type Container struct {
	Config *config.Config

	// Infrastructure
	DB       *sqlx.DB
	Redis    *redis.Client
	Registry *prometheus.Registry

	// Auth
	Signer       *auth.JWTService
	Sessions     *authsrv.SessionManager
	RefreshStore auth.RefreshStore
	Middleware   *auth.TokenMiddleware
	Metrics      *metricx.AuthMetrics

	// Tenancy
	Tenants  *tenantinfra.CachedDirectory
	Resolver *tenant.Resolver
	changes  *pq.Listener
	stop     context.CancelFunc

	// HTTP
	Handlers *authapi.Handlers
	limiter  *authapi.IPLimiter
}

// NewContainer wires everything. Configuration errors are fatal: the
// service does not start without a signing secret, issuer, audience and TTLs.
func NewContainer(cfg *config.Config) *Container {
	logx.Info("Initializing application container...")

	c := &Container{Config: cfg}
	c.initInfrastructure()
	c.initTenancy()
	c.initAuth()

	logx.Info("Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	db, err := openDB(context.Background(), c.Config.Database)
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	c.DB = db
	logx.Info("  Database connected")

	if c.Config.Auth.Session.Store == "redis" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Addr(),
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		_, err := asyncx.RetryWithBackoff(context.Background(), startupBackoff("redis"), func(ctx context.Context) (string, error) {
			return c.Redis.Ping(ctx).Result()
		})
		if err != nil {
			logx.Fatalf("Failed to connect to Redis: %v", err)
		}
		logx.Info("  Redis connected")
	}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(c.DB.DB, c.Config.Database.Name),
	)
	c.Metrics = metricx.NewAuthMetrics(c.Registry)
}

// openDB waits for Postgres with exponential backoff, so the service can
// start alongside its database.
func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := asyncx.RetryWithBackoff(ctx, startupBackoff("postgres"), func(ctx context.Context) (*sqlx.DB, error) {
		return sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	})
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func startupBackoff(backend string) asyncx.Backoff {
	return asyncx.Backoff{
		Attempts:     6,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logx.WithFields(logx.Fields{
				"backend": backend,
				"attempt": attempt,
				"wait":    wait.String(),
			}).WithError(err).Warn("backing service not ready, retrying")
		},
	}
}

// ---------------------------------------------------------------------------
// Tenancy
// ---------------------------------------------------------------------------

func (c *Container) initTenancy() {
	t := c.Config.Tenancy
	c.Tenants = tenantinfra.NewCachedDirectory(tenantinfra.NewPostgresDirectory(c.DB), t.CacheTTL, t.CacheCapacity)
	c.Resolver = tenant.NewResolver(c.Tenants, t.SuperAdminPrefix, tenant.WithObserver(c.Metrics))
	logx.WithField("prefix", t.SuperAdminPrefix).Info("  Tenant resolver ready")

	if !t.WatchChanges {
		return
	}
	listener, err := tenantinfra.NewChangeListener(c.Config.Database.DSN())
	if err != nil {
		logx.WithError(err).Warn("  Tenant change listener unavailable; cache entries expire after their TTL")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.changes, c.stop = listener, cancel
	go tenantinfra.WatchChanges(ctx, listener.Notify, c.Tenants)
	logx.Info("  Tenant change listener started")
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func (c *Container) initAuth() {
	a := c.Config.Auth

	signer, err := auth.NewJWTService(auth.JWTConfig{
		SecretKey: a.JWT.SecretKey,
		Issuer:    a.JWT.Issuer,
		Audience:  a.JWT.Audience,
	})
	if err != nil {
		logx.Fatalf("Invalid token configuration: %v", err)
	}
	c.Signer = signer

	c.RefreshStore = c.newRefreshStore()

	opts := []authsrv.Option{
		authsrv.WithAccessTTL(a.JWT.AccessTokenTTL),
		authsrv.WithRefreshTTL(a.JWT.RefreshTokenTTL),
		authsrv.WithReuseResponse(authsrv.ParseReuseResponse(a.Session.ReuseResponse)),
		authsrv.WithReuseGrace(a.Session.ReuseGrace),
		authsrv.WithPasswordMinLength(a.Password.MinLength),
		authsrv.WithAudit(auth.MultiAudit{
			authinfra.NewLogxAuditService(logx.GetDefaultLogger()),
			c.Metrics,
		}),
	}
	if a.Session.SerializeRefresh {
		opts = append(opts, authsrv.WithSerializedRefresh())
	}

	c.Sessions = authsrv.NewSessionManager(
		authinfra.NewPostgresUserDirectory(c.DB),
		c.RefreshStore,
		c.Signer,
		authinfra.NewBcryptPasswordService(a.Password.BcryptCost),
		opts...,
	)
	c.Middleware = auth.NewAuthMiddleware(c.Signer)

	c.limiter = authapi.NewIPLimiter(a.RateLimit.LoginPerMinute, a.RateLimit.LoginBurst)
	c.Handlers = authapi.NewHandlers(c.Sessions, c.Tenants, c.limiter)

	logx.WithFields(logx.Fields{
		"refresh_store":  a.Session.Store,
		"reuse_response": a.Session.ReuseResponse,
		"access_ttl":     a.JWT.AccessTokenTTL.String(),
		"refresh_ttl":    a.JWT.RefreshTokenTTL.String(),
	}).Info("  Session manager ready")
}

func (c *Container) newRefreshStore() auth.RefreshStore {
	switch c.Config.Auth.Session.Store {
	case "redis":
		return authinfra.NewRedisRefreshStore(c.Redis)
	case "memory":
		logx.Warn("Using in-memory refresh store; sessions are lost on restart")
		return authinfra.NewMemoryRefreshStore()
	default:
		return authinfra.NewPostgresRefreshStore(c.DB)
	}
}

// ---------------------------------------------------------------------------
// Health & cleanup
// ---------------------------------------------------------------------------

// Ping checks every backing service in parallel and returns the failures by name
func (c *Container) Ping(ctx context.Context) map[string]error {
	names := []string{"db"}
	checks := []func(context.Context) (struct{}, error){
		func(ctx context.Context) (struct{}, error) { return struct{}{}, c.DB.PingContext(ctx) },
	}
	if c.Redis != nil {
		names = append(names, "redis")
		checks = append(checks, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.Redis.Ping(ctx).Err()
		})
	}

	failures := map[string]error{}
	for i, r := range asyncx.AllSettled(ctx, checks...) {
		if !r.OK() {
			failures[names[i]] = r.Err
		}
	}
	return failures
}

// Cleanup releases infrastructure resources
func (c *Container) Cleanup() {
	logx.Info("Cleaning up resources...")
	if c.limiter != nil {
		c.limiter.Close()
	}
	if c.stop != nil {
		c.stop()
	}
	if c.changes != nil {
		if err := c.changes.Close(); err != nil {
			logx.Errorf("Error closing tenant listener: %v", err)
		}
	}
	if c.Tenants != nil {
		c.Tenants.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		}
	}
}
