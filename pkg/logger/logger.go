package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var (
	mu       sync.Mutex
	out      io.Writer = os.Stderr
	minLevel           = LevelInfo
	jsonMode           = false
)

// SetOutput redirects log output. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the minimum level that is emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetJSONMode switches between human-readable and JSON line output.
func SetJSONMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonMode = enabled
}

func log(level Level, component, msg string, fields map[string]interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")

	if jsonMode {
		entry := map[string]interface{}{
			"time":  now,
			"level": levelNames[level],
			"msg":   msg,
		}
		if component != "" {
			entry["component"] = component
		}
		for k, v := range fields {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		fmt.Fprintln(out, string(data))
		return
	}

	var b strings.Builder
	b.WriteString(now)
	b.WriteString(" [")
	b.WriteString(levelNames[level])
	b.WriteString("]")
	if component != "" {
		b.WriteString(" [")
		b.WriteString(component)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
		}
	}

	fmt.Fprintln(out, b.String())
}

// Debug logs a debug message.
func Debug(msg string) { log(LevelDebug, "", msg, nil) }

// Info logs an info message.
func Info(msg string) { log(LevelInfo, "", msg, nil) }

// Warn logs a warning.
func Warn(msg string) { log(LevelWarn, "", msg, nil) }

// Error logs an error.
func Error(msg string) { log(LevelError, "", msg, nil) }

// DebugCF logs a debug message with a component tag and structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	log(LevelDebug, component, msg, fields)
}

// InfoCF logs an info message with a component tag and structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	log(LevelInfo, component, msg, fields)
}

// WarnCF logs a warning with a component tag and structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	log(LevelWarn, component, msg, fields)
}

// ErrorCF logs an error with a component tag and structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	log(LevelError, component, msg, fields)
}
