// Package logging builds the service's structured zap logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLogLevel = "info"

// NewLogger constructs a zap logger. Production emits JSON; any other environment gets
// a colored console encoder. An unknown level falls back to info.
func NewLogger(level, environment string) (*zap.Logger, error) {
	atomic := ParseLevel(level)

	if strings.EqualFold(strings.TrimSpace(environment), "production") {
		cfg := zap.Config{
			Level:    atomic,
			Encoding: "json",
			EncoderConfig: zapcore.EncoderConfig{
				MessageKey: "message",
				TimeKey:    "timestamp",
				LevelKey:   "severity",
				EncodeTime: zapcore.RFC3339NanoTimeEncoder,
				EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
					enc.AppendString(strings.ToUpper(level.String()))
				},
				CallerKey:     "caller",
				EncodeCaller:  zapcore.ShortCallerEncoder,
				StacktraceKey: "stacktrace",
			},
			OutputPaths:       []string{"stdout"},
			ErrorOutputPaths:  []string{"stderr"},
			DisableStacktrace: true,
		}
		return cfg.Build()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = atomic
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// ParseLevel returns the atomic level for name, defaulting to info
func ParseLevel(name string) zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name)))); err != nil {
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}
	return level
}
