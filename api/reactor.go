// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Readiness-registration interface consumed by the readiness backend.
// The reactor owns the polling mechanism and the dispatch goroutine; the
// listener only holds a registration on its listening descriptor.

package api

// ReadyHandler is invoked by the reactor's dispatch goroutine each time the
// registered descriptor reports read readiness. Registrations are
// level-triggered, so the handler keeps firing until the readiness
// condition is drained.
type ReadyHandler func(fd int)

// Reactor hands out persistent, level-triggered read-interest
// registrations.
type Reactor interface {
	// Register adds a persistent read-interest registration for fd. The
	// handler runs on the reactor's dispatch goroutine.
	Register(fd int, h ReadyHandler) (Registration, error)
}

// Registration is one live readiness registration. It is wholly present
// until cancelled; there is no partially registered state.
type Registration interface {
	// FD returns the registered descriptor.
	FD() int

	// Cancel removes the registration. The handler does not fire after
	// Cancel returns for readiness that arrives later; a dispatch already
	// in flight may still complete.
	Cancel() error
}
