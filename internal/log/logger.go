// Package log wraps log/slog with component-scoped loggers and the field
// name constants shared across the module.
package log

import (
	"log/slog"
	"os"
)

// Config holds logger configuration
type Config struct {
	Level   slog.Level
	JSON    bool
	Handler slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo}
}

// New creates a logger with the given configuration.
func New(config Config) *slog.Logger {
	handler := config.Handler
	if handler == nil {
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.JSON {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}
	}
	return slog.New(handler)
}

// ForComponent returns a logger carrying the component attribute.
func ForComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(FieldComponent, component)
}

// SetDefault installs the logger as the process default so package-level
// slog calls share the same handler.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
