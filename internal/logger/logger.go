// Package logger holds the process-wide zap logger. It is initialized with a
// development configuration so that unit tests and ad hoc runs produce
// readable output; main replaces it with the environment-appropriate logger
// during startup.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

func init() {
	log = New("dev")
}

// New builds a zap logger for the given environment ("prod" enables the JSON
// production encoder). LOG_LEVEL overrides the default level when set.
func New(env string) *zap.Logger {
	var cfg zap.Config
	if env == "prod" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(level)
		}
	}
	l, _ := cfg.Build()
	return l
}

// Get returns the current process logger.
func Get() *zap.Logger { return log }

// Set replaces the process logger. Intended for main and for tests.
func Set(l *zap.Logger) { log = l }

func Debug(msg string, fields ...zap.Field) { log.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { log.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { log.Fatal(msg, fields...) }

// Sync flushes buffered log entries. Call before process exit.
func Sync() error { return log.Sync() }
