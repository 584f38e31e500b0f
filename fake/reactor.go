// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides test doubles for the api contracts: a scripted
// reactor, a scripted completion port, an in-memory SocketOps, and a
// recording logger.
package fake

import (
	"sync"

	"github.com/momentics/hioload-listener/api"
)

// Reactor records registrations and lets tests fire readiness by hand.
type Reactor struct {
	mu   sync.Mutex
	regs map[int]*registration

	// RegisterErr, when set, fails the next Register call.
	RegisterErr error
	// CancelErr, when set, fails every Cancel call.
	CancelErr error
}

var _ api.Reactor = (*Reactor)(nil)

func NewReactor() *Reactor {
	return &Reactor{regs: make(map[int]*registration)}
}

func (r *Reactor) Register(fd int, h api.ReadyHandler) (api.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.RegisterErr; err != nil {
		r.RegisterErr = nil
		return nil, err
	}
	reg := &registration{owner: r, fd: fd, handler: h}
	r.regs[fd] = reg
	return reg, nil
}

// Ready fires the handler registered for fd on the calling goroutine,
// mimicking a level-triggered dispatch. It reports whether a registration
// was present.
func (r *Reactor) Ready(fd int) bool {
	r.mu.Lock()
	reg := r.regs[fd]
	r.mu.Unlock()
	if reg == nil {
		return false
	}
	reg.handler(fd)
	return true
}

// Registered reports whether fd currently holds a registration.
func (r *Reactor) Registered(fd int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[fd] != nil
}

type registration struct {
	owner   *Reactor
	fd      int
	handler api.ReadyHandler
}

func (g *registration) FD() int { return g.fd }

func (g *registration) Cancel() error {
	g.owner.mu.Lock()
	defer g.owner.mu.Unlock()
	if err := g.owner.CancelErr; err != nil {
		return err
	}
	delete(g.owner.regs, g.fd)
	return nil
}
