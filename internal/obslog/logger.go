// Package obslog constructs the process-wide zap logger and the
// append-only JSONL audit sink, grounded on the teacher's
// internal/logging package (category-based zap setup, AuditEventType
// structured records) but without its package-level globals: every
// caller receives an explicit logger value from New/NewAuditService,
// matching the constructor-injection rule SPEC_FULL.md's ambient
// logging section states.
package obslog

import (
	"fmt"

	"github.com/gofr-iq/gofr-iq/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger from cfg.Logging.
func New(cfg config.LoggingConfig) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(orDefault(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = orDefault(cfg.Encoding, "json")
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return logger.Sugar(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
