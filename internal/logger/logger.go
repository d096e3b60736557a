// Package logger builds the process logger: the log/slog API backed by a zap
// production core that writes JSON to stdout.
package logger

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New returns a logger at the given level ("debug", "info", "warn", "error")
// and a function that flushes buffered entries.
func New(level string) (*slog.Logger, func() error, error) {
	return build(level, []string{"stdout"})
}

func build(level string, outputPaths []string) (*slog.Logger, func() error, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	// Every persist failure must reach the log.
	zapConfig.Sampling = nil
	zapConfig.OutputPaths = outputPaths
	zapConfig.EncoderConfig.TimeKey = "time"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := zapConfig.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return slog.New(zapslog.NewHandler(zl.Core())), zl.Sync, nil
}
