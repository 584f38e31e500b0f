//go:build windows

// File: internal/sockops/sockops_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows implementation of api.SocketOps over golang.org/x/sys/windows.
// Synchronous Accept is not provided here: on Windows connections are
// taken through the completion backend (AcceptEx), never by polling.

package sockops

import (
	"net/netip"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-listener/api"
)

type windowsOps struct{}

// Native returns the operating-system implementation of api.SocketOps.
func Native() api.SocketOps { return windowsOps{} }

func (windowsOps) Socket(f api.Family) (int, error) {
	fam := windows.AF_INET
	if f == api.IPv6 {
		fam = windows.AF_INET6
	}
	h, err := windows.Socket(fam, windows.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	return int(h), nil
}

func (windowsOps) SetNonblock(fd int) error {
	return windows.SetNonblock(windows.Handle(fd), true)
}

func (windowsOps) SetKeepAlive(fd int) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_KEEPALIVE, 1)
}

func (windowsOps) SetReuseAddr(fd int) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
}

// SetCloseOnExec is a no-op: Windows has no exec inheritance model for
// sockets that matches FD_CLOEXEC.
func (windowsOps) SetCloseOnExec(fd int) error { return nil }

func (windowsOps) Bind(fd int, addr netip.AddrPort) error {
	return windows.Bind(windows.Handle(fd), sockaddrFromAddrPort(addr))
}

func (windowsOps) Listen(fd, backlog int) error {
	return windows.Listen(windows.Handle(fd), backlog)
}

func (windowsOps) Accept(fd int) (int, netip.AddrPort, error) {
	return -1, netip.AddrPort{}, api.ErrNotSupported
}

func (windowsOps) LocalAddr(fd int) (netip.AddrPort, error) {
	sa, err := windows.Getsockname(windows.Handle(fd))
	if err != nil {
		return netip.AddrPort{}, err
	}
	return AddrPortFromSockaddr(sa)
}

func (windowsOps) Close(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

func sockaddrFromAddrPort(addr netip.AddrPort) windows.Sockaddr {
	if api.FamilyOf(addr.Addr()) == api.IPv6 {
		sa := &windows.SockaddrInet6{Port: int(addr.Port())}
		copy(sa.Addr[:], addr.Addr().AsSlice())
		return sa
	}
	sa := &windows.SockaddrInet4{Port: int(addr.Port())}
	a4 := addr.Addr().As4()
	copy(sa.Addr[:], a4[:])
	return sa
}

// AddrPortFromSockaddr converts a windows.Sockaddr into netip form. The
// completion port uses it to decode AcceptEx address records.
func AddrPortFromSockaddr(sa windows.Sockaddr) (netip.AddrPort, error) {
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)), nil
	case *windows.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)), nil
	default:
		return netip.AddrPort{}, windows.WSAEAFNOSUPPORT
	}
}
