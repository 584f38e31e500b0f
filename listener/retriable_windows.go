//go:build windows

// File: listener/retriable_windows.go
// Author: momentics <momentics@gmail.com>

package listener

import (
	"errors"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-listener/api"
)

// acceptRetriable reports whether an accept failure means "no connection
// pending right now" rather than a fault on the listening socket.
func acceptRetriable(err error) bool {
	return errors.Is(err, api.ErrWouldBlock) ||
		errors.Is(err, windows.WSAEWOULDBLOCK) ||
		errors.Is(err, windows.WSAEINTR) ||
		errors.Is(err, windows.WSAECONNRESET)
}
