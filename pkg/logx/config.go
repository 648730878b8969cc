package logx

import (
	"io"
	"os"
	"strings"
	"time"
)

// Format selects the line encoding
type Format string

const (
	FormatConsole Format = "console"
	// FormatJSON writes one object per line; use it in production
	FormatJSON Format = "json"
)

// Config holds the logger configuration
type Config struct {
	Level  Level
	Format Format

	// Service, when set, is stamped as "service" on every entry
	Service string

	// EnableColors only applies to the console format
	EnableColors    bool
	EnableCaller    bool
	EnableTimestamp bool

	// TimeFormat is a Go layout or one of "unix", "unixmilli"
	TimeFormat string

	Output io.Writer
}

// DefaultConfig is INFO, colored console output on stdout
func DefaultConfig() *Config {
	return &Config{
		Level:           LevelInfo,
		Format:          FormatConsole,
		EnableColors:    true,
		EnableTimestamp: true,
		TimeFormat:      time.RFC3339,
		Output:          os.Stdout,
	}
}

var timeFormats = map[string]string{
	"RFC3339":     time.RFC3339,
	"RFC3339NANO": time.RFC3339Nano,
	"UNIX":        "unix",
	"UNIXMILLI":   "unixmilli",
}

// LoadFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE, LOG_COLOR,
// LOG_CALLER and LOG_TIME_FORMAT on top of DefaultConfig.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Level = ParseLevel(v)
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), string(FormatJSON)) {
		config.Format = FormatJSON
	}
	config.Service = strings.TrimSpace(os.Getenv("LOG_SERVICE"))

	if v := os.Getenv("LOG_COLOR"); v != "" {
		config.EnableColors = isTruthy(v)
	}
	if v := os.Getenv("LOG_CALLER"); v != "" {
		config.EnableCaller = isTruthy(v)
	}
	if v := os.Getenv("LOG_TIME_FORMAT"); v != "" {
		if layout, ok := timeFormats[strings.ToUpper(v)]; ok {
			config.TimeFormat = layout
		} else {
			config.TimeFormat = v
		}
	}
	return config
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
