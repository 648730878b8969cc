package authsrv

import (
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
)

// ReuseResponse decides what happens when an already rotated refresh token
// is presented again.
type ReuseResponse int

const (
	// ReuseReject only rejects the presented token
	ReuseReject ReuseResponse = iota
	// ReuseRevokeChain also revokes every token the presented one was
	// rotated into. Other sessions of the user are left alone.
	ReuseRevokeChain
)

// ParseReuseResponse maps the configuration value; unknown values fall back to reject
func ParseReuseResponse(s string) ReuseResponse {
	if s == "revoke_chain" {
		return ReuseRevokeChain
	}
	return ReuseReject
}

func (r ReuseResponse) String() string {
	if r == ReuseRevokeChain {
		return "revoke_chain"
	}
	return "reject"
}

const (
	DefaultAccessTTL         = 15 * time.Minute
	DefaultRefreshTTL        = 7 * 24 * time.Hour
	DefaultPasswordMinLength = 8
	// DefaultReuseGrace covers clients that retry a refresh they already won
	DefaultReuseGrace = 30 * time.Second
	// passwordMaxLength is the bcrypt input limit
	passwordMaxLength = 72
)

type Option func(*SessionManager)

func WithAccessTTL(ttl time.Duration) Option {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.accessTTL = ttl
		}
	}
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.refreshTTL = ttl
		}
	}
}

// WithClock replaces time.Now; the signer keeps its own clock
func WithClock(now func() time.Time) Option {
	return func(m *SessionManager) {
		m.now = now
	}
}

func WithAudit(audit auth.AuditService) Option {
	return func(m *SessionManager) {
		if audit != nil {
			m.audit = audit
		}
	}
}

func WithReuseResponse(r ReuseResponse) Option {
	return func(m *SessionManager) {
		m.reuse = r
	}
}

// WithReuseGrace sets how long after its rotation a token may come back
// without being reported as reused. Zero reports every late presentation.
func WithReuseGrace(d time.Duration) Option {
	return func(m *SessionManager) {
		if d >= 0 {
			m.reuseGrace = d
		}
	}
}

// WithSerializedRefresh serializes refreshes of the same token inside this
// process. Only needed for stores whose Rotate is not atomic.
func WithSerializedRefresh() Option {
	return func(m *SessionManager) {
		m.serial = newKeyedMutex()
	}
}

func WithPasswordMinLength(n int) Option {
	return func(m *SessionManager) {
		if n > 0 && n <= passwordMaxLength {
			m.minPassword = n
		}
	}
}
