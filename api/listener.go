// File: api/listener.go
// Author: momentics <momentics@gmail.com>
//
// Connection-listener contract shared by the readiness-driven and the
// completion-driven backends.

package api

import "net/netip"

// Flag is a bitset of listener construction options. Flags are fixed for
// the lifetime of the handle.
type Flag uint32

const (
	// LeaveSocketsBlocking suppresses the default behaviour of switching
	// every accepted descriptor to non-blocking mode before delivery.
	LeaveSocketsBlocking Flag = 1 << iota

	// CloseOnFree transfers ownership of the listening descriptor to the
	// handle: Close releases it. Without the flag the caller keeps the
	// descriptor after Close.
	CloseOnFree

	// CloseOnExec marks the listening descriptor close-on-exec. Applied by
	// the bind helper before the socket is bound; a no-op on platforms
	// without the concept.
	CloseOnExec

	// Reuseable sets address reuse on the listening socket before bind,
	// allowing rapid rebinding to a recently released address.
	Reuseable
)

// DefaultBacklog is the listen backlog used when a negative backlog is
// passed at construction.
const DefaultBacklog = 128

// AcceptCallback receives every accepted connection. fd is the connected
// descriptor, already non-blocking unless LeaveSocketsBlocking was set;
// ownership of fd passes to the callback. peer is the remote address.
// userData is the opaque value supplied at construction.
//
// The callback must not block. With the readiness backend it runs on the
// reactor dispatch goroutine; with the completion backend it runs on the
// listener's dispatch goroutine, which is distinct from the constructing
// goroutine.
type AcceptCallback func(l Listener, fd int, peer netip.AddrPort, userData any)

// Listener is the polymorphic handle over one listening socket. The
// concrete backend is chosen at construction and never changes.
type Listener interface {
	// Enable arms delivery of accepted connections. Enabling an enabled
	// listener is a no-op success.
	Enable() error

	// Disable stops delivery without releasing the handle. Connections
	// keep queueing in the kernel backlog and are delivered after the
	// next Enable. Disabling a disabled listener is a no-op success.
	Disable() error

	// Close releases the notification source and, iff CloseOnFree is set,
	// the listening descriptor. A second Close returns ErrListenerClosed.
	Close() error

	// FD returns the listening descriptor. Valid until Close.
	FD() int
}
