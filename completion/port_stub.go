//go:build !windows
// +build !windows

// File: completion/port_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without a native completion-port facility; the
// readiness backend is the listener of choice there.

package completion

import "github.com/momentics/hioload-listener/api"

// NewPort reports that no completion facility exists on this platform.
func NewPort(workers int, log api.Logger) (api.CompletionPort, error) {
	return nil, api.ErrNotSupported
}
