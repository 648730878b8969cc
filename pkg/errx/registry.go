package errx

import (
	"fmt"
	"sync"
)

// ErrorCode is a registered, prefix-qualified code with its defaults
type ErrorCode struct {
	Code       string
	Type       Type
	HTTPStatus int
	Message    string
}

// Registry owns the codes of one bounded context ("AUTH", "TENANT", "IAM").
// Codes are registered from package-level vars, so duplicates fail at init.
type Registry struct {
	prefix string
	mu     sync.Mutex
	codes  map[string]struct{}
}

func NewRegistry(prefix string) *Registry {
	return &Registry{prefix: prefix, codes: make(map[string]struct{})}
}

// Register adds PREFIX_code. A zero httpStatus falls back to the type's default.
func (r *Registry) Register(code string, errType Type, httpStatus int, message string) *ErrorCode {
	full := r.prefix + "_" + code

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.codes[full]; dup {
		panic(fmt.Sprintf("errx: code %s registered twice", full))
	}
	r.codes[full] = struct{}{}

	if httpStatus == 0 {
		httpStatus = errType.HTTPStatus()
	}
	return &ErrorCode{Code: full, Type: errType, HTTPStatus: httpStatus, Message: message}
}

// New instantiates code with its default message
func (r *Registry) New(code *ErrorCode) *Error {
	return &Error{
		Code:       code.Code,
		Message:    code.Message,
		Type:       code.Type,
		HTTPStatus: code.HTTPStatus,
	}
}

func (r *Registry) NewWithCause(code *ErrorCode, cause error) *Error {
	return r.New(code).WithCause(cause)
}

// Len is the number of registered codes
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}
