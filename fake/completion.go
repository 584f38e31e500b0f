// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"net/netip"
	"sync"

	"github.com/momentics/hioload-listener/api"
)

// Port is a scripted api.CompletionPort. Posted accepts sit in a FIFO
// until the test completes them with Complete or Fail, which invokes the
// recorded handler on the calling goroutine the way a port worker would.
type Port struct {
	mu         sync.Mutex
	associated map[int]bool
	ops        []*postedAccept
	remotes    map[*byte]netip.AddrPort
	localAddr  netip.AddrPort

	AssociateErr error
	PostErr      error
	FinishErr    error
	finished     map[int]bool
}

type postedAccept struct {
	listenFD int
	connFD   int
	buf      []byte
	done     api.CompletionHandler
}

var _ api.CompletionPort = (*Port)(nil)

func NewPort() *Port {
	return &Port{
		associated: make(map[int]bool),
		remotes:    make(map[*byte]netip.AddrPort),
		localAddr:  netip.MustParseAddrPort("127.0.0.1:4242"),
		finished:   make(map[int]bool),
	}
}

func (p *Port) Associate(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.AssociateErr; err != nil {
		p.AssociateErr = nil
		return err
	}
	p.associated[fd] = true
	return nil
}

func (p *Port) PostAccept(listenFD, connFD int, buf []byte, done api.CompletionHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.PostErr; err != nil {
		p.PostErr = nil
		return err
	}
	p.ops = append(p.ops, &postedAccept{listenFD: listenFD, connFD: connFD, buf: buf, done: done})
	return nil
}

func (p *Port) AcceptAddrs(buf []byte) (netip.AddrPort, netip.AddrPort, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	remote, ok := p.remotes[&buf[0]]
	if !ok {
		remote = netip.MustParseAddrPort("127.0.0.1:1")
	}
	return p.localAddr, remote, nil
}

func (p *Port) FinishAccept(listenFD, connFD int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FinishErr; err != nil {
		p.FinishErr = nil
		return err
	}
	p.finished[connFD] = true
	return nil
}

func (p *Port) Close() error { return nil }

// Pending reports how many accept operations are outstanding.
func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ops)
}

// Complete finishes the oldest outstanding accept successfully, recording
// remote as the peer address its buffer decodes to. It returns the
// connected descriptor, or -1 when nothing was outstanding.
func (p *Port) Complete(remote netip.AddrPort) int {
	p.mu.Lock()
	if len(p.ops) == 0 {
		p.mu.Unlock()
		return -1
	}
	op := p.ops[0]
	p.ops = p.ops[1:]
	p.remotes[&op.buf[0]] = remote
	p.mu.Unlock()

	op.done(nil)
	return op.connFD
}

// Fail finishes the oldest outstanding accept with err. It returns the
// descriptor the operation would have delivered, or -1.
func (p *Port) Fail(err error) int {
	p.mu.Lock()
	if len(p.ops) == 0 {
		p.mu.Unlock()
		return -1
	}
	op := p.ops[0]
	p.ops = p.ops[1:]
	p.mu.Unlock()

	op.done(err)
	return op.connFD
}

// Associated reports whether fd was associated with the port.
func (p *Port) Associated(fd int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.associated[fd]
}

// Finished reports whether FinishAccept ran for connFD.
func (p *Port) Finished(connFD int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished[connFD]
}
