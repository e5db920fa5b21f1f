package logging

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logging interface used across the service.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})

	// With returns a logger that includes the given fields in every entry.
	With(fields map[string]interface{}) Logger
}

type zerologLogger struct {
	logger zerolog.Logger
}

// New creates a zerolog-backed logger writing JSON to stderr. The level is
// taken from LOG_LEVEL (debug, info, warn, error), defaulting to info.
func New() Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	return &zerologLogger{logger: logger}
}

// NewWithLogger wraps an existing zerolog.Logger.
func NewWithLogger(logger zerolog.Logger) Logger {
	return &zerologLogger{logger: logger}
}

func (l *zerologLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}

func (l *zerologLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logger.Info().Fields(fields).Msg(msg)
}

func (l *zerologLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logger.Warn().Fields(fields).Msg(msg)
}

func (l *zerologLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logger.Error().Fields(fields).Msg(msg)
}

func (l *zerologLogger) With(fields map[string]interface{}) Logger {
	return &zerologLogger{logger: l.logger.With().Fields(fields).Logger()}
}

type noOpLogger struct{}

// NewNoOpLogger creates a logger that discards everything. Useful in tests.
func NewNoOpLogger() Logger {
	return &noOpLogger{}
}

func (l *noOpLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {}
func (l *noOpLogger) Info(ctx context.Context, msg string, fields map[string]interface{})  {}
func (l *noOpLogger) Warn(ctx context.Context, msg string, fields map[string]interface{})  {}
func (l *noOpLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {}
func (l *noOpLogger) With(fields map[string]interface{}) Logger                            { return l }
