package logging

type noopLogger struct{}

// NewNoop returns a Logger that discards everything, for tests that
// don't want log noise.
func NewNoop() Logger { return noopLogger{} }

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
