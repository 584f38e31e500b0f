// File: listener/config.go
// Author: momentics <momentics@gmail.com>
//
// Construction parameters shared by both backends. The surface is kept
// thin on purpose: callback, opaque user value, flag bitset, backlog, and
// the two injectable capabilities (diagnostic sink, socket ops).

package listener

import (
	"github.com/momentics/hioload-listener/api"
	"github.com/momentics/hioload-listener/internal/sockops"
)

// Config carries the construction parameters of a listener.
type Config struct {
	// Callback receives every accepted connection. Required.
	Callback api.AcceptCallback

	// UserData is handed to the callback untouched.
	UserData any

	// Flags is the option bitset; see api.Flag.
	Flags api.Flag

	// Backlog controls listen(2) at construction: positive is used as-is,
	// negative selects api.DefaultBacklog. Zero means the caller already
	// marked the socket listening and the raw constructor must not call
	// listen; the bind helper rejects zero outright.
	Backlog int

	// Slots is the accept-slot pool size of the completion backend.
	// Values below one select a single slot. Ignored by the readiness
	// backend.
	Slots int

	// Log receives diagnostics from the autonomous accept loops. Nil
	// selects DefaultLogger.
	Log api.Logger

	// Sockets overrides the socket-setup capability, mainly for tests.
	// Nil selects the operating-system implementation.
	Sockets api.SocketOps
}

func (c *Config) logger() api.Logger {
	if c.Log != nil {
		return c.Log
	}
	return DefaultLogger()
}

func (c *Config) sockets() api.SocketOps {
	if c.Sockets != nil {
		return c.Sockets
	}
	return sockops.Native()
}

func (c *Config) slotCount() int {
	if c.Slots > 0 {
		return c.Slots
	}
	return 1
}

// applyBacklog realizes the backlog semantics above against fd.
func applyBacklog(sock api.SocketOps, fd, backlog int) error {
	switch {
	case backlog > 0:
		return sock.Listen(fd, backlog)
	case backlog < 0:
		return sock.Listen(fd, api.DefaultBacklog)
	}
	return nil
}
