// Package logging builds the structured logger shared by every component of
// the bridge.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Env selects which base zap configuration New starts from.
type Env string

const (
	// EnvDevelopment favors human-readable, colorized console output.
	EnvDevelopment Env = "development"
	// EnvProduction favors structured JSON output suitable for log shipping.
	EnvProduction Env = "production"
)

// New builds a zap logger for env at the given minimum level. Unparseable
// levels fall back to info. If zap fails to build the logger (should not
// happen with the static configs below) a no-op logger is returned instead
// of panicking — the bridge must still start even with broken logging.
func New(env Env, level string) *zap.Logger {
	var cfg zap.Config
	if env == EnvDevelopment {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.CallerKey = ""
		cfg.DisableStacktrace = true
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.CallerKey = "caller"
		cfg.DisableStacktrace = false
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		fmt.Printf("logging: failed to build zap logger for env %q, falling back to no-op: %v\n", env, err)
		return zap.NewNop()
	}
	return logger
}
