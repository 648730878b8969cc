package kernel

import (
	"context"
	"time"
)

// ============================================================================
// Context Types - Tipos para context.Context
// ============================================================================

// AuthContext es el contexto de autenticación que se inyecta en cada request.
// Se construye a partir de los claims de un access token ya verificado.
type AuthContext struct {
	UserID    UserID    `json:"user_id"`
	TenantID  *TenantID `json:"tenant_id,omitempty"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"token_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ============================================================================
// Validation Methods
// ============================================================================

// IsValid verifica si el AuthContext es válido: SuperAdmin sin tenant, el resto con tenant
func (ac *AuthContext) IsValid() bool {
	if ac == nil || ac.UserID.IsEmpty() || !ac.Role.IsValid() {
		return false
	}
	if ac.Role == RoleSuperAdmin {
		return ac.TenantID == nil
	}
	return ac.TenantID != nil && !ac.TenantID.IsEmpty()
}

// IsSuperAdmin verifica si el contexto pertenece a un super administrador
func (ac *AuthContext) IsSuperAdmin() bool {
	return ac != nil && ac.Role == RoleSuperAdmin
}

// HasRole verifica si el contexto tiene alguno de los roles proporcionados
func (ac *AuthContext) HasRole(roles ...Role) bool {
	if ac == nil {
		return false
	}
	for _, r := range roles {
		if ac.Role == r {
			return true
		}
	}
	return false
}

// CanAccessTenant verifica si el contexto puede operar sobre el tenant.
// Un SuperAdmin puede operar sobre cualquier tenant.
func (ac *AuthContext) CanAccessTenant(id TenantID) bool {
	if ac == nil {
		return false
	}
	if ac.IsSuperAdmin() {
		return true
	}
	return ac.TenantID != nil && *ac.TenantID == id
}

// ============================================================================
// Context Keys - Claves para context.Context
// ============================================================================

type ContextKey string

const (
	// AuthContextKey es la clave para almacenar AuthContext en context.Context
	AuthContextKey ContextKey = "auth_context"

	// TenantContextKey es la clave para almacenar TenantID en context.Context
	TenantContextKey ContextKey = "tenant_id"

	// RequestIDKey es la clave para almacenar el ID de la petición
	RequestIDKey ContextKey = "request_id"
)

// WithAuthContext guarda el AuthContext en el contexto
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// AuthContextFrom obtiene el AuthContext del contexto
func AuthContextFrom(ctx context.Context) (*AuthContext, bool) {
	if ctx == nil {
		return nil, false
	}
	ac, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return ac, ok && ac != nil
}

// WithTenantID guarda el tenant resuelto para la petición
func WithTenantID(ctx context.Context, id TenantID) context.Context {
	return context.WithValue(ctx, TenantContextKey, id)
}

// TenantIDFrom obtiene el tenant resuelto para la petición
func TenantIDFrom(ctx context.Context) (TenantID, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(TenantContextKey).(TenantID)
	return id, ok && !id.IsEmpty()
}

// WithRequestID guarda el ID de la petición
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFrom obtiene el ID de la petición
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
