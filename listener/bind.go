// File: listener/bind.go
// Author: momentics <momentics@gmail.com>
//
// Convenience constructor: creates, configures and binds the listening
// socket before handing it to New.

package listener

import (
	"fmt"
	"net/netip"

	"github.com/momentics/hioload-listener/api"
)

// NewBind creates a stream socket for addr's family, makes it
// non-blocking, applies api.CloseOnExec and api.Reuseable per cfg.Flags,
// enables keep-alive, binds it to addr when addr is valid, and delegates
// to New. A zero addr skips bind. Any failure closes the partially
// configured socket.
//
// Unlike New, a zero cfg.Backlog is a caller error here: a socket this
// helper just created cannot already be listening.
func NewBind(r api.Reactor, addr netip.AddrPort, cfg Config) (*Readiness, error) {
	if cfg.Backlog == 0 {
		return nil, api.ErrBacklogZero
	}
	if cfg.Callback == nil {
		return nil, api.ErrMissingCallback
	}
	sock := cfg.sockets()

	fd, err := sock.Socket(api.FamilyOf(addr.Addr()))
	if err != nil {
		return nil, fmt.Errorf("listener: socket: %w", err)
	}
	if err := sock.SetNonblock(fd); err != nil {
		_ = sock.Close(fd)
		return nil, fmt.Errorf("listener: set non-blocking: %w", err)
	}
	if cfg.Flags&api.CloseOnExec != 0 {
		if err := sock.SetCloseOnExec(fd); err != nil {
			_ = sock.Close(fd)
			return nil, fmt.Errorf("listener: set close-on-exec: %w", err)
		}
	}
	// Keep-alive and address-reuse failures are non-fatal.
	_ = sock.SetKeepAlive(fd)
	if cfg.Flags&api.Reuseable != 0 {
		_ = sock.SetReuseAddr(fd)
	}
	if addr.IsValid() {
		if err := sock.Bind(fd, addr); err != nil {
			_ = sock.Close(fd)
			return nil, fmt.Errorf("listener: bind %s: %w", addr, err)
		}
	}

	l, err := New(r, fd, cfg)
	if err != nil {
		_ = sock.Close(fd)
		return nil, err
	}
	return l, nil
}
