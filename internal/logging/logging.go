// Package logging builds the zap loggers shared by the server and client
// binaries.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New creates a logger at the given level ("debug", "info", "warn", "error").
// The json format is the production encoder; console is meant for terminals.
func New(level, format string) (*zap.Logger, error) {
	return build(level, format, nil)
}

// NewFile is New writing to path instead of stderr. The terminal client logs
// this way so its output does not tear the UI.
func NewFile(level, format, path string) (*zap.Logger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("logging: empty log file path")
	}
	return build(level, format, []string{path})
}

func build(level, format string, outputs []string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		cfg = zap.NewProductionConfig()
	case FormatConsole:
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if len(outputs) > 0 {
		cfg.OutputPaths = outputs
		cfg.ErrorOutputPaths = outputs
	}

	return cfg.Build()
}

// WithContext returns a child logger named after a component.
func WithContext(log *zap.Logger, component string, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return log.Named(component).With(fields...)
}
