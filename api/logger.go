// Package api
// Author: momentics
//
// Injected diagnostic sink. The accept loops run autonomously with no
// synchronous caller to report to, so failures inside them are routed
// through this capability instead of a process-wide logging singleton.

package api

// Logger is the diagnostic sink passed at construction.
type Logger interface {
	// Debugf records low-volume lifecycle events.
	Debugf(format string, args ...any)

	// Errorf records failures inside the autonomous accept loops.
	Errorf(format string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Errorf(string, ...any) {}
