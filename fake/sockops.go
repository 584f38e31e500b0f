// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"net/netip"
	"sync"

	"github.com/momentics/hioload-listener/api"
)

// SocketOps is an in-memory api.SocketOps. Descriptors are handed out
// sequentially from 1000; every option applied and every close is
// recorded for assertions. Accept pops from a scripted queue and reports
// api.ErrWouldBlock when it runs dry.
type SocketOps struct {
	mu     sync.Mutex
	nextFD int

	pending []pendingConn

	nonblocking map[int]bool
	keepAlive   map[int]bool
	reuseAddr   map[int]bool
	closeOnExec map[int]bool
	closed      map[int]bool
	bound       map[int]netip.AddrPort
	backlogs    map[int]int
	local       map[int]netip.AddrPort

	// Scripted one-shot failures.
	SocketErr error
	BindErr   error
	ListenErr error
	// AcceptErr is returned by Accept (before consulting the queue) until
	// cleared; use it for non-retriable accept faults.
	AcceptErr error
	// NonblockErr fails every SetNonblock call until cleared.
	NonblockErr error

	socketErrSkip int
	socketErrLate error
}

type pendingConn struct {
	fd   int
	peer netip.AddrPort
}

var _ api.SocketOps = (*SocketOps)(nil)

func NewSocketOps() *SocketOps {
	return &SocketOps{
		nextFD:      1000,
		nonblocking: make(map[int]bool),
		keepAlive:   make(map[int]bool),
		reuseAddr:   make(map[int]bool),
		closeOnExec: make(map[int]bool),
		closed:      make(map[int]bool),
		bound:       make(map[int]netip.AddrPort),
		backlogs:    make(map[int]int),
		local:       make(map[int]netip.AddrPort),
	}
}

// Push queues one established connection for Accept and returns the
// descriptor Accept will hand out for it.
func (s *SocketOps) Push(peer netip.AddrPort) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	fd := s.nextFD
	s.nextFD++
	s.pending = append(s.pending, pendingConn{fd: fd, peer: peer})
	return fd
}

func (s *SocketOps) Socket(f api.Family) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.SocketErr; err != nil {
		s.SocketErr = nil
		return -1, err
	}
	if s.socketErrLate != nil {
		if s.socketErrSkip == 0 {
			err := s.socketErrLate
			s.socketErrLate = nil
			return -1, err
		}
		s.socketErrSkip--
	}
	fd := s.nextFD
	s.nextFD++
	return fd, nil
}

// SocketErrAfter scripts Socket to succeed n times and then fail once
// with err.
func (s *SocketOps) SocketErrAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.socketErrSkip = n
	s.socketErrLate = err
}

func (s *SocketOps) SetNonblock(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.NonblockErr; err != nil {
		return err
	}
	s.nonblocking[fd] = true
	return nil
}

func (s *SocketOps) SetKeepAlive(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepAlive[fd] = true
	return nil
}

func (s *SocketOps) SetReuseAddr(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reuseAddr[fd] = true
	return nil
}

func (s *SocketOps) SetCloseOnExec(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeOnExec[fd] = true
	return nil
}

func (s *SocketOps) Bind(fd int, addr netip.AddrPort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.BindErr; err != nil {
		s.BindErr = nil
		return err
	}
	s.bound[fd] = addr
	s.local[fd] = addr
	return nil
}

func (s *SocketOps) Listen(fd, backlog int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ListenErr; err != nil {
		s.ListenErr = nil
		return err
	}
	s.backlogs[fd] = backlog
	return nil
}

func (s *SocketOps) Accept(fd int) (int, netip.AddrPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.AcceptErr; err != nil {
		return -1, netip.AddrPort{}, err
	}
	if len(s.pending) == 0 {
		return -1, netip.AddrPort{}, api.ErrWouldBlock
	}
	c := s.pending[0]
	s.pending = s.pending[1:]
	return c.fd, c.peer, nil
}

func (s *SocketOps) LocalAddr(fd int) (netip.AddrPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.local[fd]; ok {
		return a, nil
	}
	return netip.MustParseAddrPort("127.0.0.1:0"), nil
}

func (s *SocketOps) Close(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed[fd] = true
	return nil
}

// SetLocalAddr scripts LocalAddr for fd.
func (s *SocketOps) SetLocalAddr(fd int, addr netip.AddrPort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[fd] = addr
}

// Recorded state accessors.

func (s *SocketOps) Nonblocking(fd int) bool { s.mu.Lock(); defer s.mu.Unlock(); return s.nonblocking[fd] }
func (s *SocketOps) KeepAlive(fd int) bool   { s.mu.Lock(); defer s.mu.Unlock(); return s.keepAlive[fd] }
func (s *SocketOps) ReuseAddr(fd int) bool   { s.mu.Lock(); defer s.mu.Unlock(); return s.reuseAddr[fd] }
func (s *SocketOps) CloseOnExec(fd int) bool { s.mu.Lock(); defer s.mu.Unlock(); return s.closeOnExec[fd] }
func (s *SocketOps) Closed(fd int) bool      { s.mu.Lock(); defer s.mu.Unlock(); return s.closed[fd] }
func (s *SocketOps) Backlog(fd int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backlogs[fd]
	return b, ok
}
func (s *SocketOps) BoundAddr(fd int) (netip.AddrPort, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.bound[fd]
	return a, ok
}
