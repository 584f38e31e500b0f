// File: listener/completion.go
// Author: momentics <momentics@gmail.com>
//
// Completion-driven backend: a fixed pool of accept slots, each holding
// one pre-created socket with one asynchronous accept posted against the
// completion port. A slot alternates between posted and dispatching for
// the whole life of the listener; re-arming after every delivery is what
// keeps it accepting.
//
// The backend is written against api.CompletionPort and api.SocketOps
// only, so it carries no build tag; the Windows IOCP implementation of
// the port lives in the completion package.

package listener

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/hioload-listener/api"
	"github.com/momentics/hioload-listener/internal/dispatch"
)

// Address-record sizes for the slot scratch buffer: sockaddr_in,
// sockaddr_in6, and the per-record padding the asynchronous accept
// primitive requires.
const (
	sockaddrInLen  = 16
	sockaddrIn6Len = 28
	addrRecordPad  = 16
)

// acceptBufLen sizes a slot buffer to hold the local plus remote address
// records for one completed accept.
func acceptBufLen(f api.Family) int {
	n := sockaddrInLen
	if f == api.IPv6 {
		n = sockaddrIn6Len
	}
	return (n + addrRecordPad) * 2
}

// Completion is the completion-driven listener backend.
type Completion struct {
	id       string
	port     api.CompletionPort
	cb       api.AcceptCallback
	userData any
	flags    api.Flag
	log      api.Logger
	sock     api.SocketOps
	fd       int
	family   api.Family

	// queue serializes completion handling and callback delivery on one
	// goroutine, keeping re-arm chains from growing the port worker's
	// stack.
	queue *dispatch.Queue

	mu      sync.Mutex
	slots   []*acceptSlot
	enabled bool
	closed  bool
}

var _ api.Listener = (*Completion)(nil)

// acceptSlot is one independently re-armable asynchronous accept.
type acceptSlot struct {
	buf     []byte
	pending int // socket the outstanding accept delivers into; -1 when none

	// A connection that completed while the listener was disabled is
	// held here and delivered by the next Enable.
	held     bool
	heldFD   int
	heldPeer netip.AddrPort
}

// NewCompletion constructs a completion listener over an already-bound
// socket. cfg.Backlog follows the Config semantics. The slot pool is
// armed in full before returning; any failure releases every slot
// acquired so far and reports the error, never a half-armed listener.
// Ownership of fd stays with the caller unless api.CloseOnFree is set.
func NewCompletion(port api.CompletionPort, fd int, cfg Config) (*Completion, error) {
	if cfg.Callback == nil {
		return nil, api.ErrMissingCallback
	}
	sock := cfg.sockets()
	if err := applyBacklog(sock, fd, cfg.Backlog); err != nil {
		return nil, fmt.Errorf("listener: listen on fd %d: %w", fd, err)
	}
	local, err := sock.LocalAddr(fd)
	if err != nil {
		return nil, fmt.Errorf("listener: local address of fd %d: %w", fd, err)
	}

	l := &Completion{
		id:       uuid.NewString(),
		port:     port,
		cb:       cfg.Callback,
		userData: cfg.UserData,
		flags:    cfg.Flags,
		log:      cfg.logger(),
		sock:     sock,
		fd:       fd,
		family:   api.FamilyOf(local.Addr()),
		queue:    dispatch.New(),
		enabled:  true,
	}

	n := cfg.slotCount()
	l.slots = make([]*acceptSlot, 0, n)
	for i := 0; i < n; i++ {
		s := &acceptSlot{
			buf:     make([]byte, acceptBufLen(l.family)),
			pending: -1,
			heldFD:  -1,
		}
		l.slots = append(l.slots, s)
		if err := l.post(s); err != nil {
			l.teardown()
			return nil, fmt.Errorf("listener: arm accept slot %d: %w", i, err)
		}
	}
	l.log.Debugf("listener %s: %d accept slot(s) posted on fd %d", l.id, n, fd)
	return l, nil
}

// Enable resumes delivery. Connections that completed while disabled are
// delivered first, then their slots are re-armed, then any slot that went
// idle is posted again. No-op when already enabled.
func (l *Completion) Enable() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return api.ErrListenerClosed
	}
	if l.enabled {
		l.mu.Unlock()
		return nil
	}
	l.enabled = true
	var withHeld, idle []*acceptSlot
	for _, s := range l.slots {
		switch {
		case s.held:
			withHeld = append(withHeld, s)
		case s.pending == -1:
			idle = append(idle, s)
		}
	}
	l.mu.Unlock()

	// Every slot is visited even when one fails, so a partial fault never
	// leaves deliverable connections stranded behind an early return.
	var firstErr error
	for _, s := range withHeld {
		s := s
		if err := l.queue.Submit(func() { l.deliverHeld(s) }); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, s := range idle {
		if err := l.post(s); err != nil {
			l.log.Errorf("listener %s: re-arm accept slot on enable: %v", l.id, err)
		}
	}
	return firstErr
}

// Disable suppresses delivery without tearing anything down. Posted
// operations stay outstanding; a completion arriving while disabled is
// held undelivered in its slot and surfaces after the next Enable.
func (l *Completion) Disable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return api.ErrListenerClosed
	}
	l.enabled = false
	return nil
}

// Close stops delivery, releases every slot socket, and, iff
// api.CloseOnFree is set, the listening descriptor. In-flight operations
// are cancelled by their socket going away, not drained.
func (l *Completion) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return api.ErrListenerClosed
	}
	l.closed = true
	l.enabled = false
	l.mu.Unlock()

	l.teardown()
	if l.flags&api.CloseOnFree != 0 {
		if err := l.sock.Close(l.fd); err != nil {
			return fmt.Errorf("listener: close fd %d: %w", l.fd, err)
		}
	}
	return nil
}

// teardown drains the dispatch queue and releases slot-owned descriptors.
// Delivery stops before any descriptor is touched.
func (l *Completion) teardown() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.queue.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.slots {
		if s.pending != -1 {
			_ = l.sock.Close(s.pending)
			s.pending = -1
		}
		if s.held {
			_ = l.sock.Close(s.heldFD)
			s.held = false
			s.heldFD = -1
		}
	}
}

// FD returns the listening descriptor.
func (l *Completion) FD() int { return l.fd }

// Port returns the completion port the listener posts against.
func (l *Completion) Port() api.CompletionPort { return l.port }

// post arms one slot: fresh socket, port association, one asynchronous
// accept. On failure the slot is left unarmed and the socket released.
func (l *Completion) post(s *acceptSlot) error {
	nfd, err := l.sock.Socket(l.family)
	if err != nil {
		return fmt.Errorf("pending socket: %w", err)
	}
	if l.flags&api.LeaveSocketsBlocking == 0 {
		if err := l.sock.SetNonblock(nfd); err != nil {
			_ = l.sock.Close(nfd)
			return fmt.Errorf("set pending socket non-blocking: %w", err)
		}
	}
	if err := l.port.Associate(nfd); err != nil {
		_ = l.sock.Close(nfd)
		return fmt.Errorf("associate pending socket: %w", err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = l.sock.Close(nfd)
		return api.ErrListenerClosed
	}
	s.pending = nfd
	l.mu.Unlock()

	err = l.port.PostAccept(l.fd, nfd, s.buf, func(opErr error) {
		// Hop off the port worker onto the serial queue. A failed submit
		// means teardown already owns the pending socket.
		_ = l.queue.Submit(func() { l.complete(s, opErr) })
	})
	if err != nil {
		l.mu.Lock()
		s.pending = -1
		l.mu.Unlock()
		_ = l.sock.Close(nfd)
		return fmt.Errorf("post accept: %w", err)
	}
	return nil
}

// complete handles one finished accept operation on the dispatch
// goroutine: extract addresses, deliver, re-arm.
func (l *Completion) complete(s *acceptSlot, opErr error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return // teardown releases s.pending
	}
	conn := s.pending
	s.pending = -1
	l.mu.Unlock()

	if opErr != nil {
		l.log.Errorf("listener %s: asynchronous accept: %v", l.id, opErr)
		_ = l.sock.Close(conn)
		l.rearm(s)
		return
	}

	_, remote, err := l.port.AcceptAddrs(s.buf)
	if err != nil {
		l.log.Errorf("listener %s: decode accept addresses: %v", l.id, err)
		_ = l.sock.Close(conn)
		l.rearm(s)
		return
	}
	if err := l.port.FinishAccept(l.fd, conn); err != nil {
		l.log.Errorf("listener %s: finish accept: %v", l.id, err)
		_ = l.sock.Close(conn)
		l.rearm(s)
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = l.sock.Close(conn)
		return
	}
	if !l.enabled {
		s.held = true
		s.heldFD = conn
		s.heldPeer = remote
		l.mu.Unlock()
		return // re-armed by Enable
	}
	l.mu.Unlock()

	// Ownership of conn passes to the callback here; the slot must not
	// touch it afterwards.
	l.cb(l, conn, remote, l.userData)
	l.rearm(s)
}

// deliverHeld hands out a connection stashed by a disabled-time
// completion, then re-arms the slot.
func (l *Completion) deliverHeld(s *acceptSlot) {
	l.mu.Lock()
	if l.closed || !s.held {
		l.mu.Unlock()
		return
	}
	conn, peer := s.heldFD, s.heldPeer
	s.held = false
	s.heldFD = -1
	l.mu.Unlock()

	l.cb(l, conn, peer, l.userData)
	l.rearm(s)
}

// rearm posts the next accept on s. A slot whose re-arm fails goes inert
// until the listener is closed and reconstructed; the failure is reported
// through the sink, not retried.
func (l *Completion) rearm(s *acceptSlot) {
	l.mu.Lock()
	if l.closed || !l.enabled {
		// Enable posts idle slots again.
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	if err := l.post(s); err != nil {
		l.log.Errorf("listener %s: re-arm accept slot: %v (slot inert)", l.id, err)
	}
}
