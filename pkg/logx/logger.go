package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// sink is the shared output of a logger and all loggers derived from it
type sink struct {
	mu        sync.Mutex
	writer    io.Writer
	formatter Formatter
	exitFunc  func(int)
}

func (s *sink) write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(p); err != nil {
		fmt.Fprintf(os.Stderr, "logx: write failed: %v\n", err)
	}
}

// Logger writes leveled, structured entries. Loggers returned by With share
// the parent's level, output and formatter and add their own base fields.
type Logger struct {
	level  *atomic.Uint32
	sink   *sink
	base   Fields
	caller bool
	now    func() time.Time
}

// NewLogger creates a logger from config (nil means DefaultConfig)
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	var formatter Formatter = NewConsoleFormatter(config)
	if config.Format == FormatJSON {
		formatter = NewJSONFormatter(config)
	}

	writer := config.Output
	if writer == nil {
		writer = os.Stdout
	}

	level := &atomic.Uint32{}
	level.Store(uint32(config.Level))

	l := &Logger{
		level:  level,
		sink:   &sink{writer: writer, formatter: formatter, exitFunc: os.Exit},
		caller: config.EnableCaller,
		now:    time.Now,
	}
	if config.Service != "" {
		l.base = Fields{"service": config.Service}
	}
	return l
}

// With returns a child logger that stamps fields on every entry
func (l *Logger) With(fields Fields) *Logger {
	child := *l
	child.base = make(Fields, len(l.base)+len(fields))
	for k, v := range l.base {
		child.base[k] = v
	}
	for k, v := range fields {
		child.base[k] = v
	}
	return &child
}

// SetLevel changes the level of this logger and every logger derived from it
func (l *Logger) SetLevel(level Level) {
	l.level.Store(uint32(level))
}

func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

// SetOutput redirects the shared output
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.writer = w
}

// SetExitFunc replaces os.Exit for FATAL entries
func (l *Logger) SetExitFunc(fn func(int)) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.exitFunc = fn
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if !l.GetLevel().Enabled(level) {
		return
	}

	entry := &LogEntry{
		Level:     level,
		Message:   msg,
		Fields:    sanitize(fields),
		Error:     err,
		Timestamp: l.now(),
	}
	if l.caller {
		entry.Caller = caller(4)
	}

	formatted, ferr := l.sink.formatter.Format(entry)
	if ferr != nil {
		fmt.Fprintf(os.Stderr, "logx: format failed: %v\n", ferr)
		return
	}
	l.sink.write(formatted)
}

func (l *Logger) WithField(key string, value interface{}) *Entry {
	return newEntry(l).WithField(key, value)
}

func (l *Logger) WithFields(fields Fields) *Entry {
	return newEntry(l).WithFields(fields)
}

func (l *Logger) WithError(err error) *Entry {
	return newEntry(l).WithError(err)
}

func (l *Logger) exit(code int) {
	l.sink.mu.Lock()
	fn := l.sink.exitFunc
	l.sink.mu.Unlock()
	fn(code)
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
