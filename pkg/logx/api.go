package logx

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(LoadFromEnv()))
}

func std() *Logger { return defaultLogger.Load() }

// SetDefaultLogger replaces the process-wide logger used by the package functions
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

func GetDefaultLogger() *Logger { return std() }

func SetLevel(level Level) { std().SetLevel(level) }

func SetOutput(w io.Writer) { std().SetOutput(w) }

// ============================================================================
// Package-level logging
// ============================================================================

func Info(msg string)  { newEntry(std()).Info(msg) }
func Warn(msg string)  { newEntry(std()).Warn(msg) }
func Error(msg string) { newEntry(std()).Error(msg) }

func Infof(format string, args ...interface{}) {
	newEntry(std()).Info(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	newEntry(std()).Error(fmt.Sprintf(format, args...))
}

// Fatalf logs and exits; startup wiring uses it for unrecoverable configuration
func Fatalf(format string, args ...interface{}) {
	newEntry(std()).Fatalf(format, args...)
}

// ============================================================================
// Structured logging
// ============================================================================

func WithFields(fields Fields) *Entry { return std().WithFields(fields) }

func WithField(key string, value interface{}) *Entry { return std().WithField(key, value) }

func WithError(err error) *Entry { return std().WithError(err) }

// WithContext starts an entry carrying the request, user and tenant ids found in ctx
func WithContext(ctx context.Context) *Entry {
	return newEntry(std()).WithContext(ctx)
}
