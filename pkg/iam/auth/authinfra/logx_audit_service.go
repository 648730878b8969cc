package authinfra

import (
	"context"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/Abraxas-365/tenantauth/pkg/logx"
)

// LogxAuditService implements auth.AuditService using structured logx logging.
// Token values never reach the log; reuse events carry the record id only.
type LogxAuditService struct {
	logger *logx.Logger
}

func NewLogxAuditService(logger *logx.Logger) *LogxAuditService {
	if logger == nil {
		logger = logx.GetDefaultLogger()
	}
	return &LogxAuditService{logger: logger.With(logx.Fields{"component": "audit"})}
}

func (s *LogxAuditService) event(ctx context.Context, name string, fields logx.Fields) *logx.Entry {
	fields["audit_event"] = name
	return s.logger.WithFields(fields).WithContext(ctx)
}

func (s *LogxAuditService) LogLoginAttempt(ctx context.Context, email string, identity *auth.Identity, success bool, ip string) {
	fields := logx.Fields{
		"email":   email,
		"success": success,
		"ip":      ip,
	}
	addIdentity(fields, identity)

	e := s.event(ctx, "login_attempt", fields)
	if success {
		e.Info("Audit: login succeeded")
		return
	}
	e.Warn("Audit: login failed")
}

func (s *LogxAuditService) LogLogout(ctx context.Context, revoked bool, ip string) {
	s.event(ctx, "logout", logx.Fields{
		"revoked": revoked,
		"ip":      ip,
	}).Info("Audit: logout")
}

func (s *LogxAuditService) LogTokenRefresh(ctx context.Context, identity *auth.Identity, success bool, ip string) {
	fields := logx.Fields{
		"success": success,
		"ip":      ip,
	}
	addIdentity(fields, identity)

	e := s.event(ctx, "token_refresh", fields)
	if success {
		e.Info("Audit: token refreshed")
		return
	}
	e.Warn("Audit: token refresh rejected")
}

func (s *LogxAuditService) LogRefreshReuse(ctx context.Context, token *auth.RefreshToken, ip string, revokedChain int) {
	fields := logx.Fields{
		"ip":            ip,
		"revoked_chain": revokedChain,
	}
	if token != nil {
		fields["token_id"] = token.ID
		fields["user_id"] = token.UserID.String()
		if token.ReplacedBy != nil {
			fields["replaced_by"] = *token.ReplacedBy
		}
	}
	s.event(ctx, "refresh_reuse", fields).Error("Audit: rotated refresh token presented again")
}

func (s *LogxAuditService) LogPasswordChanged(ctx context.Context, userID kernel.UserID, revokedSessions int, ip string) {
	s.event(ctx, "password_changed", logx.Fields{
		"user_id":          userID.String(),
		"revoked_sessions": revokedSessions,
		"ip":               ip,
	}).Info("Audit: password changed")
}

func addIdentity(fields logx.Fields, identity *auth.Identity) {
	if identity == nil {
		return
	}
	fields["user_id"] = identity.ID.String()
	fields["role"] = identity.Role.String()
	if identity.TenantID != nil {
		fields["tenant_id"] = identity.TenantID.String()
	}
}
