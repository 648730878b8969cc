package authapi

import (
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type LogoutResponse struct {
	Revoked bool `json:"revoked"`
}

type ChangePasswordResponse struct {
	RevokedSessions int `json:"revoked_sessions"`
}

// MeResponse describes the caller as seen by the access token
type MeResponse struct {
	UserID    kernel.UserID    `json:"user_id"`
	TenantID  *kernel.TenantID `json:"tenant_id,omitempty"`
	Role      kernel.Role      `json:"role"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// SessionResponse is returned by the tenant gated session route
type SessionResponse struct {
	MeResponse
	Resolution string `json:"resolution"`
}

type LoginResponse struct {
	Identity *auth.Identity `json:"identity"`
	auth.TokenPair
}

func meFrom(ac *kernel.AuthContext) MeResponse {
	return MeResponse{
		UserID:    ac.UserID,
		TenantID:  ac.TenantID,
		Role:      ac.Role,
		ExpiresAt: ac.ExpiresAt,
	}
}
