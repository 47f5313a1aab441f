package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the process logger is built.
type Config struct {
	// Env selects the output format: "dev" for colored console output,
	// "prod" for JSON. Default: "dev".
	Env string

	// Level is the minimum level to emit: "debug", "info", "warn", "error".
	// Default: "info".
	Level string

	// Service is attached to every entry when set.
	Service string
}

// Logger adapts a zap sugared logger to the printf-style logging interface
// the rest of the codebase consumes.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a logger from cfg. It never fails; a broken configuration
// falls back to zap's production defaults.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	var zcfg zap.Config
	if strings.ToLower(cfg.Env) == "prod" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true

	l, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l, _ = zap.NewProduction()
	}

	if cfg.Service != "" {
		l = l.With(zap.String("service", cfg.Service))
	}

	return &Logger{s: l.Sugar()}
}

// Named returns a logger scoped to the given subsystem.
func (l *Logger) Named(name string) *Logger {
	return &Logger{s: l.s.Named(name)}
}

func (l *Logger) Debug(format string, args ...any) {
	l.s.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.s.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.s.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.s.Errorf(format, args...)
}

func (l *Logger) Fatal(format string, args ...any) {
	l.s.Fatalf(format, args...)
}

// Sync flushes buffered entries. Call it on shutdown.
func (l *Logger) Sync() error {
	return l.s.Sync()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
