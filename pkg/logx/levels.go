package logx

import "strings"

// Level orders severities; a logger emits entries at or above its level
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	// LevelWarn is for expected failures worth noticing (bad credentials, expired tokens)
	LevelWarn
	// LevelError is for unexpected failures (signing, storage)
	LevelError
	LevelFatal
	// LevelOff disables output
	LevelOff
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "OFF"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel accepts any case and "warning"; unknown input yields INFO
func ParseLevel(level string) Level {
	s := strings.ToUpper(strings.TrimSpace(level))
	if s == "WARNING" {
		s = "WARN"
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i)
		}
	}
	return LevelInfo
}

// Enabled reports whether an entry at target passes a logger set to l
func (l Level) Enabled(target Level) bool {
	return l != LevelOff && target >= l
}
