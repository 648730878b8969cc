package auth

import (
	"context"

	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

// NopAudit discards every event
type NopAudit struct{}

func (NopAudit) LogLoginAttempt(context.Context, string, *Identity, bool, string) {}
func (NopAudit) LogLogout(context.Context, bool, string)                          {}
func (NopAudit) LogTokenRefresh(context.Context, *Identity, bool, string)         {}
func (NopAudit) LogRefreshReuse(context.Context, *RefreshToken, string, int)      {}
func (NopAudit) LogPasswordChanged(context.Context, kernel.UserID, int, string)   {}

// MultiAudit fans every event out to each service in order
type MultiAudit []AuditService

func (m MultiAudit) LogLoginAttempt(ctx context.Context, email string, identity *Identity, success bool, ip string) {
	for _, a := range m {
		a.LogLoginAttempt(ctx, email, identity, success, ip)
	}
}

func (m MultiAudit) LogLogout(ctx context.Context, revoked bool, ip string) {
	for _, a := range m {
		a.LogLogout(ctx, revoked, ip)
	}
}

func (m MultiAudit) LogTokenRefresh(ctx context.Context, identity *Identity, success bool, ip string) {
	for _, a := range m {
		a.LogTokenRefresh(ctx, identity, success, ip)
	}
}

func (m MultiAudit) LogRefreshReuse(ctx context.Context, token *RefreshToken, ip string, revokedChain int) {
	for _, a := range m {
		a.LogRefreshReuse(ctx, token, ip, revokedChain)
	}
}

func (m MultiAudit) LogPasswordChanged(ctx context.Context, userID kernel.UserID, revokedSessions int, ip string) {
	for _, a := range m {
		a.LogPasswordChanged(ctx, userID, revokedSessions, ip)
	}
}
