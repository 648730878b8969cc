package logx

import (
	"bytes"
	"encoding/json"
	"time"
)

// Formatter turns an entry into one output line
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// LogEntry is what formatters receive; Fields are already redacted
type LogEntry struct {
	Level     Level
	Message   string
	Fields    Fields
	Error     error
	Timestamp time.Time
	Caller    string
}

// reserved keys are written first and cannot be shadowed by fields
var reserved = map[string]struct{}{
	"timestamp": {}, "level": {}, "message": {}, "caller": {}, "error": {},
}

// JSONFormatter writes timestamp, level and message first, then the fields
// sorted by key, then caller and error. The key order is stable so log
// lines diff cleanly.
type JSONFormatter struct {
	config *Config
}

func NewJSONFormatter(config *Config) *JSONFormatter {
	return &JSONFormatter{config: config}
}

func (f *JSONFormatter) Format(entry *LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	put := func(key string, value interface{}) error {
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if f.config.EnableTimestamp {
		var ts interface{}
		switch f.config.TimeFormat {
		case "unix":
			ts = entry.Timestamp.Unix()
		case "unixmilli":
			ts = entry.Timestamp.UnixMilli()
		default:
			ts = entry.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		if err := put("timestamp", ts); err != nil {
			return nil, err
		}
	}
	if err := put("level", entry.Level.String()); err != nil {
		return nil, err
	}
	if err := put("message", entry.Message); err != nil {
		return nil, err
	}

	for _, k := range sortedKeys(entry.Fields) {
		if _, skip := reserved[k]; skip {
			continue
		}
		if err := put(k, entry.Fields[k]); err != nil {
			return nil, err
		}
	}

	if f.config.EnableCaller && entry.Caller != "" {
		if err := put("caller", entry.Caller); err != nil {
			return nil, err
		}
	}
	if entry.Error != nil {
		if err := put("error", entry.Error.Error()); err != nil {
			return nil, err
		}
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
