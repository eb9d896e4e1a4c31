package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	level string
	zl    zerolog.Logger
}

// New returns a console logger writing to stderr at the given level
// (debug, info, warn, error). Unknown levels fall back to info.
func New(level string) *Logger {
	return NewWithWriter(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// NewJSON is used in production where logs are shipped as JSON lines.
func NewJSON(level string) *Logger {
	return NewWithWriter(level, os.Stderr)
}

func NewWithWriter(level string, w io.Writer) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &Logger{
		level: lvl.String(),
		zl:    zerolog.New(w).Level(lvl).With().Timestamp().Logger(),
	}
}

// Nop discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{level: "disabled", zl: zerolog.Nop()}
}

func (l *Logger) Level() string {
	return l.level
}

// With returns a child logger carrying an extra field on every entry.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		level: l.level,
		zl:    l.zl.With().Str(key, value).Logger(),
	}
}

func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.zl.Info().Msgf(msg, args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.zl.Debug().Msgf(msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.zl.Warn().Msgf(msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.zl.Error().Msgf(msg, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.zl.WithLevel(zerolog.FatalLevel).Msgf(msg, args...)
	os.Exit(1)
}
