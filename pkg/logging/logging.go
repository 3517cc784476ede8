// Package logging builds the single logger the whole program writes through.
// Console and processing.log share one sink so a message appears exactly once
// in each place.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing human-readable lines to stdout and, when
// expDir is non-empty, to processing.log inside the experiment directory.
func New(expDir string, debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	outputs := []string{"stdout"}
	if expDir != "" {
		if err := os.MkdirAll(expDir, 0o755); err != nil {
			return nil, fmt.Errorf("create experiment directory: %w", err)
		}
		outputs = append(outputs, filepath.Join(expDir, "processing.log"))
	}
	cfg.OutputPaths = outputs

	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything; used in tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
