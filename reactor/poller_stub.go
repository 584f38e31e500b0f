//go:build !linux && !darwin
// +build !linux,!darwin

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without a readiness poller. Windows builds use the
// completion backend instead of this package.

package reactor

import "github.com/momentics/hioload-listener/api"

func newPoller() (poller, error) {
	return nil, api.ErrNotSupported
}
