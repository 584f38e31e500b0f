// File: api/socket.go
// Author: momentics <momentics@gmail.com>
//
// Socket-setup capability consumed by both backends. The production
// implementation lives in internal/sockops; fakes exist for tests.

package api

import "net/netip"

// Family selects the address family of a freshly created stream socket.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// FamilyOf maps an address to its socket family.
func FamilyOf(addr netip.Addr) Family {
	if addr.Is6() && !addr.Is4In6() {
		return IPv6
	}
	return IPv4
}

// SocketOps is the narrow socket-option and accept surface the listener
// core depends on. Every method operates on raw descriptors; none blocks.
type SocketOps interface {
	// Socket creates a stream socket of the given family.
	Socket(f Family) (int, error)

	// SetNonblock switches fd to non-blocking mode.
	SetNonblock(fd int) error

	// SetKeepAlive enables TCP keep-alive probes on fd.
	SetKeepAlive(fd int) error

	// SetReuseAddr allows rebinding to a recently released address.
	SetReuseAddr(fd int) error

	// SetCloseOnExec marks fd close-on-exec. No-op where the platform
	// lacks the concept.
	SetCloseOnExec(fd int) error

	// Bind binds fd to addr.
	Bind(fd int, addr netip.AddrPort) error

	// Listen marks fd as a listening socket with the given backlog.
	Listen(fd, backlog int) error

	// Accept takes one established connection off fd's backlog. It never
	// blocks: when no connection is pending it returns a retriable error.
	Accept(fd int) (nfd int, peer netip.AddrPort, err error)

	// LocalAddr reports the locally bound address of fd.
	LocalAddr(fd int) (netip.AddrPort, error)

	// Close releases fd.
	Close(fd int) error
}
