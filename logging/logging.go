package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ANSI escapes used when color is enabled.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorBold   = "\033[1m"
)

// Level orders log records by severity.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < DebugLevel || l > FatalLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a config string onto a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Fields are key/value pairs attached to a record.
type Fields map[string]any

// Logger is what every component logs through. Components derive their
// own logger once with WithFields({"component": ...}).
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)
	Fatal(err error, msg string, fields ...Fields)

	// WithFields returns a logger with preset fields
	WithFields(fields Fields) Logger

	// WithContext returns a logger that can extract fields from context
	WithContext(ctx context.Context) Logger

	// SetLevel sets the minimum log level
	SetLevel(level Level)
}

type contextKey struct{}

// ContextWithFields attaches fields that WithContext will pick up.
func ContextWithFields(ctx context.Context, fields Fields) context.Context {
	return context.WithValue(ctx, contextKey{}, fields)
}

func fieldsFromContext(ctx context.Context) (Fields, bool) {
	if ctx == nil {
		return nil, false
	}
	fields, ok := ctx.Value(contextKey{}).(Fields)
	return fields, ok
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewDefaultLogger()
)

// SetGlobalLogger replaces the process logger. Component loggers created
// before the call keep the logger they were derived from. A nil logger
// discards everything.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger returns the process logger.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func Debug(msg string, fields ...Fields) { GetGlobalLogger().Debug(msg, fields...) }

func Info(msg string, fields ...Fields) { GetGlobalLogger().Info(msg, fields...) }

func Warn(msg string, fields ...Fields) { GetGlobalLogger().Warn(msg, fields...) }

func Error(err error, msg string, fields ...Fields) { GetGlobalLogger().Error(err, msg, fields...) }

func Fatal(err error, msg string, fields ...Fields) { GetGlobalLogger().Fatal(err, msg, fields...) }

// WithFields derives a component logger from the process logger.
func WithFields(fields Fields) Logger { return GetGlobalLogger().WithFields(fields) }

func WithContext(ctx context.Context) Logger { return GetGlobalLogger().WithContext(ctx) }

func SetLevel(level Level) { GetGlobalLogger().SetLevel(level) }
