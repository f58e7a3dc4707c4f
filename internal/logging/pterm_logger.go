package logging

import "github.com/pterm/pterm"

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 2006 15:04:05"
}

// ptermLogger is the default Logger, printing through pterm's prefixed,
// leveled printers.
type ptermLogger struct {
	prefix string
}

// NewPtermLogger returns the root Logger for a process.
func NewPtermLogger() Logger {
	return &ptermLogger{}
}

func (l *ptermLogger) tag(format string) string {
	if l.prefix == "" {
		return format
	}
	return "[" + l.prefix + "] " + format
}

func (l *ptermLogger) Info(format string, args ...any) {
	pterm.Info.Printfln(l.tag(format), args...)
}

func (l *ptermLogger) Warn(format string, args ...any) {
	pterm.Warning.Printfln(l.tag(format), args...)
}

func (l *ptermLogger) Error(format string, args ...any) {
	pterm.Error.Printfln(l.tag(format), args...)
}

func (l *ptermLogger) Clone(component string) Logger {
	prefix := component
	if l.prefix != "" {
		prefix = l.prefix + "/" + component
	}
	return &ptermLogger{prefix: prefix}
}
