// Package logging provides structured logging for the TAIGA optimization
// server, as a thin facade over zap.
package logging

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger represents an active logging object.
type Logger struct {
	z *zap.Logger
}

// New creates a Logger writing to the given core.
func New(core zapcore.Core) *Logger {
	return &Logger{z: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// WithFields returns a new Logger with the specified fields attached to
// every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{z: l.z.With(toZapFields(fields)...)}
}

// WithField returns a new Logger with the specified key-value pair.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithError returns a new Logger with the error field set.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{z: l.z.With(zap.Error(err))}
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.z.Debug(msg, collect(fields)...)
}

// Info logs a message at info level.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.z.Info(msg, collect(fields)...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.z.Warn(msg, collect(fields)...)
}

// Error logs a message at error level.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.z.Error(msg, collect(fields)...)
}

// Fatal logs a message at fatal level then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	l.z.Fatal(msg, collect(fields)...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func collect(fields []map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	return toZapFields(fields[0])
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case error:
			zf = append(zf, zap.NamedError(k, val))
		case fmt.Stringer:
			zf = append(zf, zap.Stringer(k, val))
		default:
			zf = append(zf, zap.Any(k, v))
		}
	}
	return zf
}

// CtxLogger is a logger that can be carried through a context.
type CtxLogger struct {
	*Logger
}

// FromContext returns the logger stored in the context, or a default
// stderr logger if none exists.
func FromContext(ctx context.Context) *CtxLogger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*CtxLogger); ok {
		return logger
	}
	return &CtxLogger{defaultLogger()}
}

// WithContext returns a new context carrying the logger.
func (l *CtxLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, l)
}

type ctxLoggerKey struct{}

func defaultLogger() *Logger {
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zapcore.InfoLevel)
	return New(core)
}
