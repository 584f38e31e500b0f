//go:build linux || darwin

// File: internal/sockops/sockops_unix.go
// Author: momentics <momentics@gmail.com>
//
// Unix implementation of api.SocketOps over golang.org/x/sys/unix.

package sockops

import (
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-listener/api"
)

type unixOps struct{}

// Native returns the operating-system implementation of api.SocketOps.
func Native() api.SocketOps { return unixOps{} }

func (unixOps) Socket(f api.Family) (int, error) {
	fam := unix.AF_INET
	if f == api.IPv6 {
		fam = unix.AF_INET6
	}
	return unix.Socket(fam, unix.SOCK_STREAM, 0)
}

func (unixOps) SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

func (unixOps) SetKeepAlive(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
}

func (unixOps) SetReuseAddr(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

func (unixOps) SetCloseOnExec(fd int) error {
	unix.CloseOnExec(fd)
	return nil
}

func (unixOps) Bind(fd int, addr netip.AddrPort) error {
	return unix.Bind(fd, sockaddrFromAddrPort(addr))
}

func (unixOps) Listen(fd, backlog int) error {
	return unix.Listen(fd, backlog)
}

func (unixOps) Accept(fd int) (int, netip.AddrPort, error) {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		return -1, netip.AddrPort{}, err
	}
	peer, err := addrPortFromSockaddr(sa)
	if err != nil {
		unix.Close(nfd)
		return -1, netip.AddrPort{}, err
	}
	return nfd, peer, nil
}

func (unixOps) LocalAddr(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return addrPortFromSockaddr(sa)
}

func (unixOps) Close(fd int) error {
	return unix.Close(fd)
}

func sockaddrFromAddrPort(addr netip.AddrPort) unix.Sockaddr {
	if api.FamilyOf(addr.Addr()) == api.IPv6 {
		sa := &unix.SockaddrInet6{Port: int(addr.Port())}
		copy(sa.Addr[:], addr.Addr().AsSlice())
		return sa
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port())}
	a4 := addr.Addr().As4()
	copy(sa.Addr[:], a4[:])
	return sa
}

func addrPortFromSockaddr(sa unix.Sockaddr) (netip.AddrPort, error) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)), nil
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)), nil
	default:
		return netip.AddrPort{}, unix.EAFNOSUPPORT
	}
}
