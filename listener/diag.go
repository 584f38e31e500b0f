// File: listener/diag.go
// Author: momentics <momentics@gmail.com>
//
// Stock diagnostic sink backed by bilog.

package listener

import (
	"fmt"
	"os"

	"github.com/zbh255/bilog"

	"github.com/momentics/hioload-listener/api"
)

// DefaultLogger returns the sink used when Config.Log is nil: a bilog
// logger writing to stdout with timestamps and caller information.
func DefaultLogger() api.Logger {
	return &bilogSink{
		l: bilog.NewLogger(os.Stdout, bilog.PANIC, bilog.WithTimes(), bilog.WithCaller()),
	}
}

type bilogSink struct {
	l bilog.Logger
}

func (s *bilogSink) Debugf(format string, args ...any) {
	s.l.Debug(fmt.Sprintf(format, args...))
}

func (s *bilogSink) Errorf(format string, args ...any) {
	s.l.ErrorFromString(fmt.Sprintf(format, args...))
}
