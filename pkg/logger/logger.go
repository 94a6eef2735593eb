// ==============================================================================
// LOGGER PACKAGE - pkg/logger/logger.go
// ==============================================================================
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

type zapLogger struct {
	base *zap.Logger
}

// New returns a JSON logger on stdout tagged with serviceName.
func New(serviceName string) Logger {
	return NewWithMode(serviceName, "production")
}

// NewWithMode builds a logger for the given mode. "development" enables debug
// level and a console encoder; anything else logs JSON at info level.
func NewWithMode(serviceName, mode string) Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        "logger",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	level := zapcore.InfoLevel
	encoder := zapcore.NewJSONEncoder(encCfg)
	if strings.EqualFold(mode, "development") || strings.EqualFold(mode, "dev") {
		level = zapcore.DebugLevel
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	base := zap.New(core).With(zap.String("service", serviceName))
	return &zapLogger{base: base}
}

func toFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (l *zapLogger) Info(message string, fields map[string]interface{}) {
	l.base.Info(message, toFields(fields)...)
}

func (l *zapLogger) Error(message string, fields map[string]interface{}) {
	l.base.Error(message, toFields(fields)...)
}

func (l *zapLogger) Warn(message string, fields map[string]interface{}) {
	l.base.Warn(message, toFields(fields)...)
}

func (l *zapLogger) Debug(message string, fields map[string]interface{}) {
	l.base.Debug(message, toFields(fields)...)
}

func (l *zapLogger) Fatal(message string, fields map[string]interface{}) {
	_ = l.base.Sync()
	l.base.Fatal(message, toFields(fields)...)
}

func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
