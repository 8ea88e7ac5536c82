package xlog

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

////////////////////////////////////////////////////////////////////////////////

// Logger is a context-aware structured logger.
// Contexts are threaded through every call site so that per-run fields
// attached via WrapContext show up on all records below that point.
type Logger interface {
	With(fields ...zap.Field) Logger
	WithName(name string) Logger

	Zap() *zap.Logger

	Debug(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
	Fatal(ctx context.Context, msg string, fields ...zap.Field)
}

////////////////////////////////////////////////////////////////////////////////

type logger struct {
	log *zap.Logger
}

var _ Logger = (*logger)(nil)

func New(log *zap.Logger) Logger {
	return &logger{log}
}

func NewNop() Logger {
	return &logger{zap.NewNop()}
}

func TryNew(log *zap.Logger, err error) (Logger, error) {
	if err != nil {
		return nil, err
	}
	return New(log), nil
}

func (l *logger) Zap() *zap.Logger {
	return l.log
}

func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{l.log.With(fields...)}
}

func (l *logger) WithName(name string) Logger {
	return &logger{l.log.Named(name)}
}

////////////////////////////////////////////////////////////////////////////////

type ctxFieldsKey struct{}

// WrapContext attaches fields to the context.
// Every Logger call made with the resulting context emits them.
func WrapContext(ctx context.Context, fields ...zap.Field) context.Context {
	prev := contextFields(ctx)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, ctxFieldsKey{}, merged)
}

func contextFields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(ctxFieldsKey{}).([]zap.Field)
	return fields
}

////////////////////////////////////////////////////////////////////////////////

func (l *logger) write(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {
	if ce := l.log.Check(level, msg); ce != nil {
		ce.Write(append(contextFields(ctx), fields...)...)
	}
}

func (l *logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.FatalLevel, msg, fields)
}
