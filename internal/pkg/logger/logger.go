// Package logger is the one place SemperVigil builds a zap logger. Every
// other package calls the package-level functions here rather than holding
// its own *zap.Logger, so the JSON-vs-console format and the active level
// are process-wide decisions made once at startup.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global      *zap.Logger
	atomicLevel zap.AtomicLevel
	initOnce    sync.Once
)

// Init builds the process-wide logger. level is any zapcore.Level text
// ("debug", "info", "warn", "error"); format "console" gets a colorized
// human-readable encoder (for `sempervigil serve` on a terminal), anything
// else gets zap's JSON production encoder (for container logs). Init is
// idempotent: later calls are no-ops, matching the one-shot nature of
// process startup in cmd/sempervigil.
func Init(level, format string) error {
	var initErr error
	initOnce.Do(func() {
		atomicLevel = zap.NewAtomicLevel()
		if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", level, err)
			return
		}

		cfg := zap.NewProductionConfig()
		if format == "console" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.Level = atomicLevel

		built, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global = built
	})
	return initErr
}

// SetLevel changes the active log level without restarting the process.
// internal/app/router.go exposes this over HTTP via HTTPHandler.
func SetLevel(level string) error {
	return atomicLevel.UnmarshalText([]byte(level))
}

// GetLevel returns the currently active log level.
func GetLevel() zapcore.Level {
	return atomicLevel.Level()
}

// HTTPHandler exposes the live log level as an http.Handler: GET reads it,
// PUT with {"level":"debug"} changes it. Mounted at /log/level behind the
// admin JWT in internal/app/router.go.
func HTTPHandler() *zap.AtomicLevel {
	return &atomicLevel
}

// L returns the process-wide logger. Panics if Init has not run yet, since
// every call site reaching this far should already be past startup.
func L() *zap.Logger {
	if global == nil {
		panic("logger.Init() must be called before logger.L()")
	}
	return global
}

// S returns the process-wide logger's sugared form, for call sites that
// prefer printf-style arguments over zap.Field.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// With returns a child logger carrying the given fields on every
// subsequent call, for a component that wants to tag all of its own log
// lines (e.g. with a source ID) without repeating the field each time.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal logs at FatalLevel severity then terminates the process via
// os.Exit(1) (zap's built-in behavior for FatalLevel).
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// Sync flushes buffered log entries. Safe to call before Init.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
