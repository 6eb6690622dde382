// Package log provides testing utilities for structured logging.
//
// TestLogger captures JSON lines in memory so stage tests can assert on
// what a stage reported (dropped columns, class counts, warnings).

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// TestLogger writes one JSON object per record to an in-memory buffer.
type TestLogger struct {
	buffer *bytes.Buffer
	level  Level
	fields map[string]any
}

// NewTestLogger returns a TestLogger that records entries at level or above,
// and the buffer it writes to.
//
//	logger, buf := log.NewTestLogger(log.LevelDebug)
//	cleaner := thyroid.NewCleaner(thyroid.WithLogger(logger))
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	return &TestLogger{buffer: buffer, level: level, fields: map[string]any{}}, buffer
}

// Debug implements Logger.Debug.
func (t *TestLogger) Debug(msg string, fields ...any) { t.log(LevelDebug, msg, fields) }

// Info implements Logger.Info.
func (t *TestLogger) Info(msg string, fields ...any) { t.log(LevelInfo, msg, fields) }

// Warn implements Logger.Warn.
func (t *TestLogger) Warn(msg string, fields ...any) { t.log(LevelWarn, msg, fields) }

// Error implements Logger.Error. A leading error argument is recorded
// under ErrAttrKey, matching ZerologLogger.
func (t *TestLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttrKey, err}, fields[1:]...)
		}
	}
	t.log(LevelError, msg, fields)
}

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	child := &TestLogger{buffer: t.buffer, level: t.level, fields: make(map[string]any, len(t.fields))}
	for k, v := range t.fields {
		child.fields[k] = v
	}
	putFields(child.fields, fields)
	return child
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return t.level <= level
}

func (t *TestLogger) log(level Level, msg string, fields []any) {
	if level < t.level {
		return
	}
	entry := map[string]any{"level": level.String(), "message": msg}
	for k, v := range t.fields {
		entry[k] = v
	}
	putFields(entry, fields)

	line, err := json.Marshal(entry)
	if err != nil {
		line, _ = json.Marshal(map[string]any{"level": level.String(), "message": msg, ErrAttrKey: err.Error()})
	}
	t.buffer.Write(line)
	t.buffer.WriteByte('\n')
}

// putFields は key/value の並びを JSON で書ける値にして m に入れる
func putFields(m map[string]any, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			m[key] = v.Error()
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				m[key] = fmt.Sprint(v)
			} else {
				m[key] = v
			}
		default:
			m[key] = v
		}
	}
}

// GetLogEntries parses every captured line.
func (t *TestLogger) GetLogEntries() ([]map[string]any, error) {
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(t.buffer.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured line contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.buffer.String(), message)
}

// ContainsField reports whether any entry has key set to value. Values are
// compared by their fmt.Sprint form, so 42 matches the decoded 42.0 only
// when passed as 42.0.
func (t *TestLogger) ContainsField(key string, value any) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && (v == value || fmt.Sprint(v) == fmt.Sprint(value)) {
			return true
		}
	}
	return false
}

// TestLoggerProvider is a LoggerProvider whose loggers all share one buffer.
type TestLoggerProvider struct {
	logger *TestLogger
}

// NewTestLoggerProvider returns a provider and the buffer its loggers write to.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *bytes.Buffer) {
	logger, buffer := NewTestLogger(level)
	return &TestLoggerProvider{logger: logger}, buffer
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *TestLoggerProvider) GetLogger() Logger {
	return p.logger
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel. Named loggers handed out
// earlier keep the level they were created with.
func (p *TestLoggerProvider) SetLevel(level Level) {
	p.logger.level = level
}
