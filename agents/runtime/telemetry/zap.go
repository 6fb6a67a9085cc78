package telemetry

import (
	"context"

	"go.uber.org/zap"
)

type zapLogger struct {
	z *zap.Logger
}

// NewZapLogger adapts a *zap.Logger to the Logger interface. keyvals are
// flattened alternating key/value pairs, matching the convention used
// throughout the runtime's call sites.
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

func (l *zapLogger) Debug(_ context.Context, msg string, keyvals ...any) {
	l.z.Sugar().Debugw(msg, keyvals...)
}

func (l *zapLogger) Info(_ context.Context, msg string, keyvals ...any) {
	l.z.Sugar().Infow(msg, keyvals...)
}

func (l *zapLogger) Warn(_ context.Context, msg string, keyvals ...any) {
	l.z.Sugar().Warnw(msg, keyvals...)
}

func (l *zapLogger) Error(_ context.Context, msg string, keyvals ...any) {
	l.z.Sugar().Errorw(msg, keyvals...)
}
