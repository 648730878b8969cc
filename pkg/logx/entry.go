package logx

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

// Entry accumulates fields for a single log line. Entries are not safe for
// concurrent use; build one per line.
type Entry struct {
	logger *Logger
	fields Fields
	err    error
}

// newEntry starts from the logger's base fields
func newEntry(logger *Logger) *Entry {
	fields := make(Fields, len(logger.base)+4)
	for k, v := range logger.base {
		fields[k] = v
	}
	return &Entry{logger: logger, fields: fields}
}

// WithField adds a field to the entry (chainable)
func (e *Entry) WithField(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

// WithFields adds multiple fields to the entry (chainable)
func (e *Entry) WithFields(fields Fields) *Entry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// WithError attaches an error (chainable)
func (e *Entry) WithError(err error) *Entry {
	e.err = err
	return e
}

// WithContext copies request_id, user_id, role and tenant_id from ctx (chainable).
// Fields already set on the entry are not overwritten.
func (e *Entry) WithContext(ctx context.Context) *Entry {
	if ctx == nil {
		return e
	}
	if id := kernel.RequestIDFrom(ctx); id != "" {
		e.setDefault("request_id", id)
	}
	if ac, ok := kernel.AuthContextFrom(ctx); ok {
		e.setDefault("user_id", ac.UserID.String())
		e.setDefault("role", ac.Role.String())
		if ac.TenantID != nil {
			e.setDefault("tenant_id", ac.TenantID.String())
		}
	}
	if tid, ok := kernel.TenantIDFrom(ctx); ok {
		e.setDefault("tenant_id", tid.String())
	}
	return e
}

func (e *Entry) setDefault(key string, value interface{}) {
	if _, exists := e.fields[key]; !exists {
		e.fields[key] = value
	}
}

func (e *Entry) emit(level Level, msg string) {
	e.logger.log(level, msg, e.fields, e.err)
}

func (e *Entry) Trace(msg string) { e.emit(LevelTrace, msg) }
func (e *Entry) Debug(msg string) { e.emit(LevelDebug, msg) }
func (e *Entry) Info(msg string)  { e.emit(LevelInfo, msg) }
func (e *Entry) Warn(msg string)  { e.emit(LevelWarn, msg) }
func (e *Entry) Error(msg string) { e.emit(LevelError, msg) }

// Fatal logs and exits with status 1
func (e *Entry) Fatal(msg string) {
	e.emit(LevelFatal, msg)
	e.logger.exit(1)
}

func (e *Entry) Infof(format string, args ...interface{}) {
	e.emit(LevelInfo, fmt.Sprintf(format, args...))
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.emit(LevelError, fmt.Sprintf(format, args...))
}

// Fatalf logs and exits with status 1
func (e *Entry) Fatalf(format string, args ...interface{}) {
	e.Fatal(fmt.Sprintf(format, args...))
}
