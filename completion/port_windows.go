//go:build windows
// +build windows

// File: completion/port_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows IOCP (I/O Completion Port) implementation of
// api.CompletionPort. Worker goroutines block in
// GetQueuedCompletionStatus and route each dequeued packet to the
// handler recorded at post time.

package completion

import (
	"fmt"
	"net/netip"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-listener/api"
	"github.com/momentics/hioload-listener/internal/sockops"
)

// acceptOp tracks one posted AcceptEx until its completion packet is
// dequeued. The overlapped pointer is the lookup key between the two.
type acceptOp struct {
	ov   windows.Overlapped
	done api.CompletionHandler
}

// Port is an IOCP-backed completion facility shared by any number of
// listeners.
type Port struct {
	handle windows.Handle
	log    api.Logger

	mu     sync.Mutex
	ops    map[*windows.Overlapped]*acceptOp
	closed bool

	wg sync.WaitGroup
}

var _ api.CompletionPort = (*Port)(nil)

// NewPort creates an IOCP and starts workers goroutines servicing it.
// workers below one selects a single worker. log may be nil.
func NewPort(workers int, log api.Logger) (api.CompletionPort, error) {
	if log == nil {
		log = api.NopLogger{}
	}
	if workers < 1 {
		workers = 1
	}
	h, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, uint32(workers))
	if err != nil {
		return nil, fmt.Errorf("completion: create port: %w", err)
	}
	p := &Port{handle: h, log: log, ops: make(map[*windows.Overlapped]*acceptOp)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

// Associate implements api.CompletionPort.
func (p *Port) Associate(fd int) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return api.ErrPortClosed
	}
	_, err := windows.CreateIoCompletionPort(windows.Handle(fd), p.handle, 0, 0)
	if err != nil {
		return fmt.Errorf("completion: associate handle %d: %w", fd, err)
	}
	return nil
}

// PostAccept implements api.CompletionPort. buf must be sized for two
// padded address records; AcceptEx receives no connection data (the
// receive length is zero), so the operation completes as soon as a
// connection is established.
func (p *Port) PostAccept(listenFD, connFD int, buf []byte, done api.CompletionHandler) error {
	op := &acceptOp{done: done}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return api.ErrPortClosed
	}
	p.ops[&op.ov] = op
	p.mu.Unlock()

	recordLen := uint32(len(buf) / 2)
	var recvd uint32
	err := windows.AcceptEx(
		windows.Handle(listenFD),
		windows.Handle(connFD),
		&buf[0],
		0,
		recordLen,
		recordLen,
		&recvd,
		&op.ov,
	)
	// Immediate success still queues a completion packet on an
	// associated socket, so both outcomes leave delivery to the worker.
	if err != nil && err != windows.ERROR_IO_PENDING {
		p.mu.Lock()
		delete(p.ops, &op.ov)
		p.mu.Unlock()
		return fmt.Errorf("completion: AcceptEx: %w", err)
	}
	return nil
}

// AcceptAddrs implements api.CompletionPort.
func (p *Port) AcceptAddrs(buf []byte) (local, remote netip.AddrPort, err error) {
	recordLen := uint32(len(buf) / 2)
	var lrsa, rrsa *windows.RawSockaddrAny
	var lrsaLen, rrsaLen int32
	windows.GetAcceptExSockaddrs(&buf[0], 0, recordLen, recordLen, &lrsa, &lrsaLen, &rrsa, &rrsaLen)

	lsa, err := lrsa.Sockaddr()
	if err != nil {
		return netip.AddrPort{}, netip.AddrPort{}, fmt.Errorf("completion: local sockaddr: %w", err)
	}
	rsa, err := rrsa.Sockaddr()
	if err != nil {
		return netip.AddrPort{}, netip.AddrPort{}, fmt.Errorf("completion: remote sockaddr: %w", err)
	}
	if local, err = sockops.AddrPortFromSockaddr(lsa); err != nil {
		return netip.AddrPort{}, netip.AddrPort{}, err
	}
	if remote, err = sockops.AddrPortFromSockaddr(rsa); err != nil {
		return netip.AddrPort{}, netip.AddrPort{}, err
	}
	return local, remote, nil
}

// FinishAccept implements api.CompletionPort: SO_UPDATE_ACCEPT_CONTEXT
// makes the accepted socket inherit the listening socket's context so
// shutdown, getsockname and friends work on it.
func (p *Port) FinishAccept(listenFD, connFD int) error {
	lh := windows.Handle(listenFD)
	err := windows.Setsockopt(
		windows.Handle(connFD),
		windows.SOL_SOCKET,
		windows.SO_UPDATE_ACCEPT_CONTEXT,
		(*byte)(unsafe.Pointer(&lh)),
		int32(unsafe.Sizeof(lh)),
	)
	if err != nil {
		return fmt.Errorf("completion: update accept context: %w", err)
	}
	return nil
}

// Close shuts the port down. Outstanding operations are not drained;
// their handlers fire with an error as the owning sockets are closed by
// their listeners, or never fire once the port handle is gone.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := windows.CloseHandle(p.handle)
	p.wg.Wait()
	return err
}

func (p *Port) worker() {
	defer p.wg.Done()
	for {
		var qty uint32
		var key uintptr
		var ovp *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(p.handle, &qty, &key, &ovp, windows.INFINITE)
		if ovp == nil {
			// No packet: the port handle itself failed or was closed.
			p.mu.Lock()
			closed := p.closed
			p.mu.Unlock()
			if closed {
				return
			}
			p.log.Errorf("completion: dequeue: %v", err)
			continue
		}

		p.mu.Lock()
		op := p.ops[ovp]
		delete(p.ops, ovp)
		p.mu.Unlock()
		if op == nil {
			p.log.Errorf("completion: packet for unknown operation")
			continue
		}
		op.done(err)
	}
}
