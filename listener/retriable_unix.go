//go:build linux || darwin

// File: listener/retriable_unix.go
// Author: momentics <momentics@gmail.com>

package listener

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-listener/api"
)

// acceptRetriable reports whether an accept failure means "no connection
// pending right now" rather than a fault on the listening socket. EPROTO
// and ECONNABORTED cover peers that reset between handshake and accept.
func acceptRetriable(err error) bool {
	return errors.Is(err, api.ErrWouldBlock) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.ECONNABORTED) ||
		errors.Is(err, unix.EPROTO) ||
		errors.Is(err, unix.EINTR)
}
