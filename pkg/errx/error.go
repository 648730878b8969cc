package errx

import (
	"errors"
	"fmt"
)

// Error is the single error shape crossing package boundaries. Code is
// registry-qualified ("AUTH_INVALID_CREDENTIALS"); Err keeps the cause for
// logs and is never rendered to clients.
type Error struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Type       Type                   `json:"type"`
	HTTPStatus int                    `json:"http_status"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a client-visible detail (chainable)
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, 1)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying error (chainable)
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// Retryable reports whether the failure is transient
func (e *Error) Retryable() bool {
	return e.Type == TypeUnavailable
}

// New creates an uncoded error; its code is the type name
func New(message string, errType Type) *Error {
	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: errType.HTTPStatus(),
	}
}

// Wrap gives err a new message and type. A coded error keeps its code,
// status and details so IsCode still matches through the wrapper.
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}

	w := New(message, errType)
	w.Err = err

	var inner *Error
	if errors.As(err, &inner) {
		w.Code = inner.Code
		w.HTTPStatus = inner.HTTPStatus
		w.Details = inner.Details
	}
	return w
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsCode reports whether any *Error in err's chain carries code
func IsCode(err error, code *ErrorCode) bool {
	if code == nil {
		return false
	}
	var e *Error
	for errors.As(err, &e) {
		if e.Code == code.Code {
			return true
		}
		err = e.Err
	}
	return false
}

// TypeOf returns the type of the outermost *Error, or TypeInternal
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// IsRetryable reports whether err is a transient storage failure
func IsRetryable(err error) bool {
	return TypeOf(err) == TypeUnavailable
}
