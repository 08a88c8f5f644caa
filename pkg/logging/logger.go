package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// NewJSONLogger creates a new JSON logger
func NewJSONLogger(writer io.Writer, level Level) *JSONLogger {
	return &JSONLogger{
		writer: writer,
		level:  level,
		fields: make([]Field, 0),
		mu:     &sync.Mutex{},
	}
}

// NewTextLogger creates a logger for human-readable console output
func NewTextLogger(writer io.Writer, level Level) *TextLogger {
	return &TextLogger{
		writer: writer,
		level:  level,
		fields: make([]Field, 0),
		mu:     &sync.Mutex{},
	}
}

// New picks the logger implementation by format name ("json" or "text")
func New(writer io.Writer, level Level, format string) (Logger, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewJSONLogger(writer, level), nil
	case "text", "console":
		return NewTextLogger(writer, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func mergeFields(preset, fields []Field) map[string]any {
	fieldMap := make(map[string]any, len(preset)+len(fields))
	for _, f := range preset {
		fieldMap[f.Key] = f.Value
	}
	for _, f := range fields {
		fieldMap[f.Key] = f.Value
	}
	return fieldMap
}

func appendFields(preset, fields []Field) []Field {
	out := make([]Field, len(preset)+len(fields))
	copy(out, preset)
	copy(out[len(preset):], fields)
	return out
}

func (l *JSONLogger) log(level Level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	entry := LogEntry{
		Time:    time.Now().Format(time.RFC3339Nano),
		Level:   level.String(),
		Message: msg,
	}
	if fieldMap := mergeFields(l.fields, fields); len(fieldMap) > 0 {
		entry.Fields = fieldMap
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.writer, "[ERROR] Failed to marshal log entry: %v\n", err)
		return
	}
	data = append(data, '\n')
	_, _ = l.writer.Write(data)
}

// Debug logs a debug-level message
func (l *JSONLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }

// Info logs an info-level message
func (l *JSONLogger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields...) }

// Warn logs a warning-level message
func (l *JSONLogger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields...) }

// Error logs an error-level message
func (l *JSONLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }

// With creates a child logger sharing the writer and its lock
func (l *JSONLogger) With(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &JSONLogger{
		writer: l.writer,
		level:  l.level,
		fields: appendFields(l.fields, fields),
		mu:     l.mu,
	}
}

// SetLevel sets the minimum log level
func (l *JSONLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *JSONLogger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *TextLogger) log(level Level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("15:04:05.000"))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s ", level.String())
	b.WriteString(msg)

	fieldMap := mergeFields(l.fields, fields)
	keys := make([]string, 0, len(fieldMap))
	for k := range fieldMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fieldMap[k])
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(l.writer, b.String())
}

// Debug logs a debug-level message
func (l *TextLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }

// Info logs an info-level message
func (l *TextLogger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields...) }

// Warn logs a warning-level message
func (l *TextLogger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields...) }

// Error logs an error-level message
func (l *TextLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }

// With creates a child logger sharing the writer and its lock
func (l *TextLogger) With(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &TextLogger{
		writer: l.writer,
		level:  l.level,
		fields: appendFields(l.fields, fields),
		mu:     l.mu,
	}
}

// SetLevel sets the minimum log level
func (l *TextLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *TextLogger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// StartTimer begins timing a stage
func StartTimer(logger Logger, msg string, fields ...Field) *TimedOperation {
	return &TimedOperation{
		logger: OrNop(logger),
		msg:    msg,
		start:  time.Now(),
		fields: fields,
	}
}

// End logs the stage with its duration and returns the duration
func (t *TimedOperation) End(fields ...Field) time.Duration {
	elapsed := time.Since(t.start)
	all := appendFields(t.fields, fields)
	t.logger.Info(t.msg, append(all, Latency(elapsed))...)
	return elapsed
}

// EndError logs the stage as failed with its duration
func (t *TimedOperation) EndError(err error) time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Error(t.msg, append(appendFields(t.fields, nil), Latency(elapsed), Error(err))...)
	return elapsed
}
