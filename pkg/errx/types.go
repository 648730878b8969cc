package errx

import "net/http"

// Type is the coarse category of an error; it fixes the default HTTP status
type Type string

const (
	TypeInternal      Type = "INTERNAL"
	TypeValidation    Type = "VALIDATION"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	// TypeUnavailable is a transient backing-store failure, the only retryable type
	TypeUnavailable Type = "UNAVAILABLE"
	TypeRateLimited Type = "RATE_LIMITED"
)

var typeStatus = map[Type]int{
	TypeValidation:    http.StatusBadRequest,
	TypeAuthorization: http.StatusUnauthorized,
	TypeNotFound:      http.StatusNotFound,
	TypeConflict:      http.StatusConflict,
	TypeUnavailable:   http.StatusServiceUnavailable,
	TypeRateLimited:   http.StatusTooManyRequests,
}

func (t Type) String() string {
	return string(t)
}

// HTTPStatus defaults to 500 for INTERNAL and unknown types
func (t Type) HTTPStatus() int {
	if s, ok := typeStatus[t]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func Validation(message string) *Error {
	return New(message, TypeValidation)
}

func NotFound(message string) *Error {
	return New(message, TypeNotFound)
}

func Unavailable(message string) *Error {
	return New(message, TypeUnavailable)
}
