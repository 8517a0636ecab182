// Package logger provides the process-wide leveled logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	std   = newSugared()
)

func newSugared() *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg := zap.Config{
		Level:            level,
		Encoding:         "console",
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Building from a static config only fails on a bad encoding name.
		panic(err)
	}
	return l.Sugar()
}

// SetGlobalLogLevel reconfigures the global logger's level.
// logLevel is one of "debug", "info", "warn", "error", "fatal".
func SetGlobalLogLevel(logLevel string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(logLevel)); err != nil {
		std.Warnf("Unknown log level %q, keeping %s", logLevel, level.Level())
		return
	}
	level.SetLevel(l)
}

// Zap returns the underlying structured logger for components that take a
// *zap.Logger explicitly.
func Zap() *zap.Logger {
	return std.Desugar()
}

// Sync flushes any buffered log entries.
func Sync() error {
	return std.Sync()
}

// Debug logs a debug message using the global logger.
func Debug(args ...interface{}) { std.Debug(args...) }

// Debugf logs a debug message with formatting.
func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }

// Info logs an informational message using the global logger.
func Info(args ...interface{}) { std.Info(args...) }

// Infof logs an informational message with formatting.
func Infof(format string, args ...interface{}) { std.Infof(format, args...) }

// Warn logs a warning message.
func Warn(args ...interface{}) { std.Warn(args...) }

// Warnf logs a warning message with formatting.
func Warnf(format string, args ...interface{}) { std.Warnf(format, args...) }

// Error logs an error message.
func Error(args ...interface{}) { std.Error(args...) }

// Errorf logs an error message with formatting.
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }

// Fatal logs a fatal error message and exits.
func Fatal(args ...interface{}) { std.Fatal(args...) }

// Fatalf logs a fatal error message with formatting and exits.
func Fatalf(format string, args ...interface{}) { std.Fatalf(format, args...) }
