// Package corelog is a tiny wrapper around the standard library's log
// package, grounded on the teacher's DebugMode/StatsMode pair of
// package-level booleans gating verbose log.Printf calls (main.go). Rather
// than package-level globals, this wraps a *log.Logger instance so
// RadioCore and the telemetry/webtap packages can each hold their own
// prefix while sharing the same Verbose-gating behavior.
package corelog

import (
	"log"
	"os"
)

// Logger gates Debugf behind Verbose while leaving Printf always-on,
// matching the teacher's "if DebugMode { log.Printf(...) }" call sites
// without repeating the conditional at every caller.
type Logger struct {
	*log.Logger
	Verbose bool
}

// New returns a Logger writing to os.Stderr with prefix, analogous to the
// standard logger main() uses before any flag parsing happens.
func New(prefix string) *Logger {
	return &Logger{
		Logger: log.New(os.Stderr, prefix, log.LstdFlags),
	}
}

// Debugf logs only if Verbose is set (the teacher's DebugMode-gated
// log.Printf call sites).
func (l *Logger) Debugf(format string, args ...any) {
	if l.Verbose {
		l.Printf(format, args...)
	}
}
