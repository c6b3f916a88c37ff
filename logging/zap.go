package logging

import "go.uber.org/zap"

// zapLogger adapts a *zap.SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZap wraps an existing *zap.SugaredLogger.
func NewZap(s *zap.SugaredLogger) Logger {
	return &zapLogger{s: s}
}

// NewDefault builds the runtime's default logger: a production zap
// logger with the debug level disabled, matching the configuration
// surface's documented default of a "silent-debug console logger" —
// info/warn/error reach stderr, debug is dropped without allocating its
// arguments' string form.
func NewDefault() Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level.SetLevel(zap.InfoLevel)
	z, err := cfg.Build()
	if err != nil {
		// zap.NewProductionConfig().Build() only fails on a broken
		// sink/encoder configuration, which cfg above never produces.
		z = zap.NewNop()
	}
	return NewZap(z.Sugar())
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
