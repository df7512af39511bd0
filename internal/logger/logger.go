package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level    string
	Encoding string
}

// New builds a sugared zap logger. Encoding "console" (or "text") gives
// human readable output; anything else is JSON.
func New(cfg Config) (*zap.SugaredLogger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	if err := zapConfig.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	switch strings.ToLower(cfg.Encoding) {
	case "console", "text":
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		zapConfig.Encoding = "json"
	}

	l, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
