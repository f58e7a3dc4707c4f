package logging

// nopLogger discards everything. Used in tests that don't assert on log
// output but still need a Logger to satisfy a constructor.
type nopLogger struct{}

// NewNopLogger returns a Logger that discards all output.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(format string, args ...any)  {}
func (nopLogger) Warn(format string, args ...any)  {}
func (nopLogger) Error(format string, args ...any) {}
func (nopLogger) Clone(component string) Logger    { return nopLogger{} }
