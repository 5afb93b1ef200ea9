// Package logging provides structured logging for the sync engine using
// Go's log/slog package, with optional rotating file output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog.Logger with engine-specific convenience methods.
type Logger struct {
	*slog.Logger
}

// FileConfig configures rotating log file output.
type FileConfig struct {
	Path       string `json:"path"`        // empty disables file output
	MaxSizeMB  int    `json:"max_size_mb"` // rotate after this many megabytes
	MaxBackups int    `json:"max_backups"` // rotated files to retain
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Config holds logger configuration.
type Config struct {
	Level     string     `json:"level"`      // debug, info, warn, error
	Format    string     `json:"format"`     // text, json
	AddSource bool       `json:"add_source"` // include source code positions
	File      FileConfig `json:"file"`
}

// DefaultConfig is the configuration used when none is supplied.
var DefaultConfig = Config{
	Level:  "info",
	Format: "text",
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewLogger(DefaultConfig)
)

// ParseLevel converts a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new logger with the provided configuration.
func NewLogger(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
	}

	var out io.Writer = os.Stderr
	if config.File.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMB,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
			Compress:   config.File.Compress,
		}
		out = io.MultiWriter(os.Stderr, rotator)
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns the process-wide default logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// WithComponent returns a logger with the component attribute attached.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", component))}
}

// LogError logs an error with a message at error level.
func (l *Logger) LogError(err error, msg string, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("error", err.Error()))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	l.Error(msg, args...)
}
