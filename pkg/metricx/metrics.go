package metricx

import (
	"context"
	"strconv"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tenantauth"

// AuthMetrics counts session events. It is an auth.AuditService and a
// tenant.Observer, so it plugs into the session manager and the resolver
// next to the log-based audit.
type AuthMetrics struct {
	logins      *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	reuse       prometheus.Counter
	revocations *prometheus.CounterVec
	resolutions *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewAuthMetrics creates the collectors and registers them with reg.
// A nil reg uses the default registerer.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &AuthMetrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh token exchanges by result.",
		}, []string{"result"}),
		reuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_reuse_detected_total",
			Help:      "Rotated refresh tokens presented again.",
		}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_revocations_total",
			Help:      "Refresh tokens revoked, by reason.",
		}, []string{"reason"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_resolutions_total",
			Help:      "Host to tenant resolutions by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.logins, m.refreshes, m.reuse, m.revocations, m.resolutions, m.httpRequests, m.httpDuration)
	return m
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ============================================================================
// auth.AuditService
// ============================================================================

func (m *AuthMetrics) LogLoginAttempt(_ context.Context, _ string, _ *auth.Identity, success bool, _ string) {
	m.logins.WithLabelValues(result(success)).Inc()
}

func (m *AuthMetrics) LogLogout(_ context.Context, revoked bool, _ string) {
	if revoked {
		m.revocations.WithLabelValues("logout").Inc()
	}
}

func (m *AuthMetrics) LogTokenRefresh(_ context.Context, _ *auth.Identity, success bool, _ string) {
	m.refreshes.WithLabelValues(result(success)).Inc()
}

func (m *AuthMetrics) LogRefreshReuse(_ context.Context, _ *auth.RefreshToken, _ string, revokedChain int) {
	m.reuse.Inc()
	if revokedChain > 0 {
		m.revocations.WithLabelValues("reuse").Add(float64(revokedChain))
	}
}

func (m *AuthMetrics) LogPasswordChanged(_ context.Context, _ kernel.UserID, revokedSessions int, _ string) {
	if revokedSessions > 0 {
		m.revocations.WithLabelValues("password_change").Add(float64(revokedSessions))
	}
}

// ============================================================================
// tenant.Observer
// ============================================================================

func (m *AuthMetrics) ObserveResolution(outcome string) {
	m.resolutions.WithLabelValues(outcome).Inc()
}

// ============================================================================
// HTTP
// ============================================================================

// Middleware records request count and latency per matched route
func (m *AuthMetrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := c.Route().Path
		method := c.Method()

		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the gatherer in the Prometheus text format.
// A nil gatherer uses the default registry.
func Handler(g prometheus.Gatherer) fiber.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
