// Package logging provides leveled console output for the timer core.
// Lines have the form: LEVEL TIMESTAMP [component] message key=value ...
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Fields are key=value pairs appended to a log line.
type Fields map[string]interface{}

// Logger writes leveled lines to an io.Writer.
// Loggers derived with WithComponent or WithTraceID share the writer lock.
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	traceID   string
}

var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a Logger writing INFO and above to stdout.
func New() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// Discard returns a logger that drops everything. Handy as a default.
func Discard() *Logger {
	l := New()
	l.output = io.Discard
	return l
}

// ParseLevel converts a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	lvl := Level(strings.ToUpper(strings.TrimSpace(s)))
	if lvl == "WARNING" {
		lvl = LevelWarn
	}
	if _, ok := levelPriority[lvl]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	c := l.clone()
	c.component = component
	return c
}

// WithTraceID returns a new logger that tags every line with trace=<id>.
func (l *Logger) WithTraceID(traceID string) *Logger {
	c := l.clone()
	c.traceID = traceID
	return c
}

func (l *Logger) clone() *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		traceID:   l.traceID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Fields) { l.log(LevelError, msg, fields...) }

// formatFields renders fields sorted by key so lines are stable.
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func (l *Logger) log(level Level, msg string, fields ...Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	merged := Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	if l.traceID != "" {
		merged["trace"] = l.traceID
	}
	fieldStr := formatFields(merged)

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}
	l.output.Write([]byte(line))
}

// --- Domain logging methods ---

// TaskTransition logs a task state change (start, pause, reset, ...).
func (l *Logger) TaskTransition(kind string, id int64, elapsed int64) {
	l.Debug("task_"+kind, Fields{
		"task":    id,
		"elapsed": elapsed,
	})
}

// FlushComplete logs a successful save.
func (l *Logger) FlushComplete(tasks int, duration time.Duration) {
	l.Debug("flush_complete", Fields{
		"tasks":    tasks,
		"duration": duration.String(),
	})
}

// FlushFailed logs a failed save. Quota failures are raised to WARN level
// separately by the caller.
func (l *Logger) FlushFailed(key string, err error) {
	l.Error("flush_failed", Fields{
		"key":   key,
		"error": err.Error(),
	})
}

// Reconciled logs the outcome of a load.
func (l *Logger) Reconciled(tasks, dropped int, credited time.Duration, activeID int64) {
	fields := Fields{
		"tasks":    tasks,
		"dropped":  dropped,
		"credited": credited.String(),
	}
	if activeID != 0 {
		fields["active"] = activeID
	}
	l.Info("reconciled", fields)
}

// Repaired logs a multi-active repair.
func (l *Logger) Repaired(kept int64, deactivated []int64) {
	ids := make([]string, len(deactivated))
	for i, id := range deactivated {
		ids[i] = fmt.Sprint(id)
	}
	l.Warn("active_repaired", Fields{
		"kept":        kept,
		"deactivated": strings.Join(ids, ","),
	})
}
