// File: listener/readiness.go
// Author: momentics <momentics@gmail.com>
//
// Readiness-driven backend: one persistent level-triggered read
// registration on the listening socket, drained to exhaustion on every
// notification.

package listener

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/hioload-listener/api"
)

// Readiness is the readiness-driven listener backend.
type Readiness struct {
	id       string
	reactor  api.Reactor
	cb       api.AcceptCallback
	userData any
	flags    api.Flag
	log      api.Logger
	sock     api.SocketOps
	fd       int

	mu     sync.Mutex
	reg    api.Registration // nil while disabled
	closed bool
}

var _ api.Listener = (*Readiness)(nil)

// New constructs a readiness listener over an already-bound socket.
// cfg.Backlog follows the semantics documented on Config: zero skips
// listen(2) for callers that configured listening state themselves. On
// success the listener is enabled.
//
// Ownership of fd stays with the caller unless api.CloseOnFree is set.
func New(r api.Reactor, fd int, cfg Config) (*Readiness, error) {
	if cfg.Callback == nil {
		return nil, api.ErrMissingCallback
	}
	sock := cfg.sockets()
	if err := applyBacklog(sock, fd, cfg.Backlog); err != nil {
		return nil, fmt.Errorf("listener: listen on fd %d: %w", fd, err)
	}
	l := &Readiness{
		id:       uuid.NewString(),
		reactor:  r,
		cb:       cfg.Callback,
		userData: cfg.UserData,
		flags:    cfg.Flags,
		log:      cfg.logger(),
		sock:     sock,
		fd:       fd,
	}
	if err := l.Enable(); err != nil {
		return nil, err
	}
	l.log.Debugf("listener %s: accepting on fd %d", l.id, fd)
	return l, nil
}

// Enable arms the readiness registration. No-op when already enabled.
func (l *Readiness) Enable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return api.ErrListenerClosed
	}
	if l.reg != nil {
		return nil
	}
	reg, err := l.reactor.Register(l.fd, l.onReady)
	if err != nil {
		return fmt.Errorf("listener: enable: %w", err)
	}
	l.reg = reg
	return nil
}

// Disable removes the registration. Connections keep queueing in the
// kernel backlog and surface after the next Enable. No-op when already
// disabled. The registration is kept until Cancel succeeds: a failed
// Disable leaves the listener enabled, and retrying is safe.
func (l *Readiness) Disable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return api.ErrListenerClosed
	}
	if l.reg == nil {
		return nil
	}
	if err := l.reg.Cancel(); err != nil {
		return fmt.Errorf("listener: disable: %w", err)
	}
	l.reg = nil
	return nil
}

// Close releases the registration and, iff api.CloseOnFree is set, the
// listening descriptor. The registration always goes first so no dispatch
// can observe a released descriptor.
func (l *Readiness) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return api.ErrListenerClosed
	}
	l.closed = true
	reg := l.reg
	l.reg = nil
	l.mu.Unlock()

	if reg != nil {
		if err := reg.Cancel(); err != nil {
			l.log.Errorf("listener %s: cancel registration on close: %v", l.id, err)
		}
	}
	if l.flags&api.CloseOnFree != 0 {
		if err := l.sock.Close(l.fd); err != nil {
			return fmt.Errorf("listener: close fd %d: %w", l.fd, err)
		}
	}
	return nil
}

// FD returns the listening descriptor.
func (l *Readiness) FD() int { return l.fd }

// Reactor returns the reactor the listener registers with.
func (l *Readiness) Reactor() api.Reactor { return l.reactor }

// onReady drains the kernel backlog. The registration is level-triggered,
// but the reactor may coalesce several arrivals into one wakeup, so every
// pending connection is taken before control returns; stopping early
// could starve later arrivals under an edge-triggered poller.
func (l *Readiness) onReady(fd int) {
	for {
		nfd, peer, err := l.sock.Accept(fd)
		if err != nil {
			if acceptRetriable(err) {
				return // backlog drained
			}
			l.log.Errorf("listener %s: accept on fd %d: %v", l.id, fd, err)
			return
		}
		if l.flags&api.LeaveSocketsBlocking == 0 {
			if err := l.sock.SetNonblock(nfd); err != nil {
				l.log.Errorf("listener %s: set fd %d non-blocking: %v", l.id, nfd, err)
				_ = l.sock.Close(nfd)
				continue
			}
		}
		l.cb(l, nfd, peer, l.userData)
	}
}
