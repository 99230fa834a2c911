// Package logger implements ports.Logger on charmbracelet/log.
package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// Logger wraps a charm logger behind the ports.Logger interface.
type Logger struct {
	l *log.Logger
}

// New creates a logger writing to stderr at info level.
func New() *Logger {
	return NewWithOptions(os.Stderr, log.InfoLevel)
}

// NewWithOptions creates a logger with an explicit sink and level. Tests pass
// a buffer here.
func NewWithOptions(w io.Writer, level log.Level) *Logger {
	return &Logger{
		l: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.l.Debug(msg)
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.l.Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.l.Warn(msg)
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.l.Error("operation failed", "error", err)
}

var _ ports.Logger = (*Logger)(nil)
