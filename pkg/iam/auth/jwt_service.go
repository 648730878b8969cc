package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest HS256 key accepted at startup
const MinSecretLength = 32

// JWTConfig son los ajustes obligatorios del firmador
type JWTConfig struct {
	SecretKey string
	Issuer    string
	Audience  string
}

// AccessClaims son los claims del access token. El claim "tid" se omite
// únicamente para SUPER_ADMIN.
type AccessClaims struct {
	Role     kernel.Role `json:"role"`
	TenantID *string     `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// UserID devuelve el sujeto del token
func (c *AccessClaims) UserID() kernel.UserID {
	return kernel.NewUserID(c.Subject)
}

// Tenant devuelve el tenant del token o nil para SUPER_ADMIN
func (c *AccessClaims) Tenant() *kernel.TenantID {
	if c.TenantID == nil {
		return nil
	}
	return kernel.TenantIDPtr(*c.TenantID)
}

// AuthContext convierte los claims verificados en el contexto de la petición
func (c *AccessClaims) AuthContext() *kernel.AuthContext {
	ac := &kernel.AuthContext{
		UserID:   c.UserID(),
		TenantID: c.Tenant(),
		Role:     c.Role,
		TokenID:  c.ID,
	}
	if c.ExpiresAt != nil {
		ac.ExpiresAt = c.ExpiresAt.Time
	}
	return ac
}

// ============================================================================
// Verification failures
// ============================================================================

// VerificationKind clasifica por qué un access token fue rechazado
type VerificationKind string

const (
	KindMalformed                VerificationKind = "malformed"
	KindSignatureInvalid         VerificationKind = "signature_invalid"
	KindExpired                  VerificationKind = "expired"
	KindIssuerOrAudienceMismatch VerificationKind = "issuer_audience_mismatch"
)

// Expected is true for failures normal clients produce (stale tokens).
// Anything else hints at tampering or misconfiguration.
func (k VerificationKind) Expected() bool {
	return k == KindExpired
}

func (k VerificationKind) code() *errx.ErrorCode {
	switch k {
	case KindSignatureInvalid:
		return CodeTokenSignatureInvalid
	case KindExpired:
		return CodeTokenExpired
	case KindIssuerOrAudienceMismatch:
		return CodeTokenIssuerAudienceMismatch
	default:
		return CodeTokenMalformed
	}
}

// TokenVerificationError is returned by Verify. It unwraps to the AUTH_TOKEN_*
// errx error, which in turn wraps the jwt library error.
type TokenVerificationError struct {
	Kind VerificationKind
	err  *errx.Error
}

func newVerificationError(kind VerificationKind, cause error) *TokenVerificationError {
	return &TokenVerificationError{
		Kind: kind,
		err:  ErrRegistry.NewWithCause(kind.code(), cause),
	}
}

func (e *TokenVerificationError) Error() string { return e.err.Error() }
func (e *TokenVerificationError) Unwrap() error { return e.err }

// VerificationKindOf extrae el tipo de fallo, o "" si err no es de verificación
func VerificationKindOf(err error) VerificationKind {
	var vErr *TokenVerificationError
	if errors.As(err, &vErr) {
		return vErr.Kind
	}
	return ""
}

func classify(err error) VerificationKind {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return KindSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return KindExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return KindIssuerOrAudienceMismatch
	default:
		return KindMalformed
	}
}

// ============================================================================
// JWTService
// ============================================================================

// JWTService firma y verifica access tokens HS256
type JWTService struct {
	secretKey []byte
	issuer    string
	audience  string
	now       func() time.Time
	parser    *jwt.Parser
}

type JWTOption func(*JWTService)

// WithClock reemplaza time.Now (tests de expiración)
func WithClock(now func() time.Time) JWTOption {
	return func(j *JWTService) {
		j.now = now
	}
}

// NewJWTService crea el firmador. La ausencia de clave, issuer o audience es
// un error de configuración que debe detener el arranque del proceso.
func NewJWTService(cfg JWTConfig, opts ...JWTOption) (*JWTService, error) {
	switch {
	case len(cfg.SecretKey) < MinSecretLength:
		return nil, ErrConfiguration("secret_key")
	case cfg.Issuer == "":
		return nil, ErrConfiguration("issuer")
	case cfg.Audience == "":
		return nil, ErrConfiguration("audience")
	}

	j := &JWTService{
		secretKey: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	// Sin leeway: el token es inválido en exp y después
	j.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(func() time.Time { return j.now() }),
	)
	return j, nil
}

// IssueAccessToken genera un token de acceso para identity. iat y exp se truncan
// al segundo, igual que NumericDate, así el expiresAt devuelto coincide con el
// claim firmado.
func (j *JWTService) IssueAccessToken(identity *Identity, ttl time.Duration) (string, time.Time, error) {
	if identity == nil {
		return "", time.Time{}, ErrInvalidIdentity().WithDetail("reason", "nil identity")
	}
	if err := identity.Validate(); err != nil {
		return "", time.Time{}, err
	}
	if ttl < time.Second {
		return "", time.Time{}, ErrTokenGenerationFailed().WithDetail("reason", "ttl below one second")
	}

	now := j.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl).Truncate(time.Second)

	claims := AccessClaims{
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.issuer,
			Subject:   identity.ID.String(),
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if identity.Role != kernel.RoleSuperAdmin {
		tid := identity.TenantID.String()
		claims.TenantID = &tid
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, ErrRegistry.NewWithCause(CodeTokenGenerationFailed, err)
	}
	return signed, expiresAt, nil
}

// Verify valida firma, algoritmo, issuer, audience y expiración en un único
// parseo y devuelve los claims. Los fallos son *TokenVerificationError.
func (j *JWTService) Verify(tokenString string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, newVerificationError(KindMalformed, errors.New("empty token"))
	}

	claims := &AccessClaims{}
	_, err := j.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, newVerificationError(classify(err), err)
	}

	if err := checkClaimShape(claims); err != nil {
		return nil, newVerificationError(KindMalformed, err)
	}
	return claims, nil
}

// VerifyAccessToken permite usar el servicio directamente en el middleware
func (j *JWTService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	return j.Verify(tokenString)
}

// checkClaimShape aplica la regla rol/tenant a tokens ya firmados
func checkClaimShape(c *AccessClaims) error {
	if c.Subject == "" {
		return errors.New("missing subject")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	if c.Role == kernel.RoleSuperAdmin && c.TenantID != nil {
		return errors.New("super admin token carries tenant claim")
	}
	if c.Role != kernel.RoleSuperAdmin && (c.TenantID == nil || *c.TenantID == "") {
		return errors.New("tenant scoped token without tenant claim")
	}
	return nil
}
