package iam

import (
	"net/http"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

// ErrRegistry holds the boundary errors returned by HTTP middleware. They are
// deliberately coarse; the precise reason stays in server logs.
var ErrRegistry = errx.NewRegistry("IAM")

var (
	CodeUnauthorized = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeInvalidToken = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired token")
	CodeAccessDenied = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Access denied")
	CodeRateLimited  = ErrRegistry.Register("RATE_LIMITED", errx.TypeRateLimited, http.StatusTooManyRequests, "Too many requests")
)

// Helper functions
func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrInvalidToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidToken)
}

func ErrAccessDenied() *errx.Error {
	return ErrRegistry.New(CodeAccessDenied)
}

func ErrRateLimited() *errx.Error {
	return ErrRegistry.New(CodeRateLimited)
}
