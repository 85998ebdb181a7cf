// Package logger writes one JSON object per line, the format used across the service
// for startup, migration, ingestion and request logs.
package logger

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Fields carries structured attributes of a log entry.
type Fields map[string]any

var (
	mu    sync.RWMutex
	out   io.Writer      = os.Stdout
	loc   *time.Location = time.UTC
	level                = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error) and the
// location used for the "ts" field. Unknown levels default to info.
func Init(l string, location *time.Location) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	default:
		level = LevelInfo
	}
	if location != nil {
		loc = location
	}
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Location returns the location used for timestamps.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return loc
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func Debug(msg string, f Fields) { write(LevelDebug, msg, f) }
func Info(msg string, f Fields)  { write(LevelInfo, msg, f) }
func Warn(msg string, f Fields)  { write(LevelWarn, msg, f) }
func Error(msg string, f Fields) { write(LevelError, msg, f) }

func write(l Level, msg string, f Fields) {
	mu.RLock()
	defer mu.RUnlock()
	if l < level {
		return
	}

	entry := make(map[string]any, len(f)+3)
	for k, v := range f {
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		entry[k] = v
	}
	entry["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	entry["level"] = l.String()
	entry["msg"] = msg

	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = out.Write(append(b, '\n'))
}
