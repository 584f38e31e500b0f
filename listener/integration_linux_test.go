//go:build linux

package listener_test

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-listener/api"
	"github.com/momentics/hioload-listener/listener"
	"github.com/momentics/hioload-listener/reactor"
)

// startReactor runs a real epoll reactor for the duration of the test.
func startReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r, err := reactor.New(nil)
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = r.Close()
		<-done
	})
	return r
}

// boundAddr reads the address the kernel assigned to the listening fd.
func boundAddr(t *testing.T, fd int) netip.AddrPort {
	t.Helper()
	sa, err := unix.Getsockname(fd)
	if err != nil {
		t.Fatalf("getsockname: %v", err)
	}
	in, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("unexpected sockaddr %T", sa)
	}
	return netip.AddrPortFrom(netip.AddrFrom4(in.Addr), uint16(in.Port))
}

func TestIntegrationAcceptsConcurrentClients(t *testing.T) {
	r := startReactor(t)

	conns := make(chan acceptedConn, 16)
	l, err := listener.NewBind(r, netip.MustParseAddrPort("127.0.0.1:0"), listener.Config{
		Callback: func(l api.Listener, fd int, peer netip.AddrPort, data any) {
			conns <- acceptedConn{l: l, fd: fd, peer: peer, data: data}
		},
		Flags:   api.Reuseable | api.CloseOnFree,
		Backlog: 16,
	})
	if err != nil {
		t.Fatalf("NewBind: %v", err)
	}
	defer l.Close()

	addr := boundAddr(t, l.FD())
	const clients = 5
	for i := 0; i < clients; i++ {
		go func() {
			c, err := net.Dial("tcp", addr.String())
			if err != nil {
				return
			}
			defer c.Close()
			time.Sleep(500 * time.Millisecond)
		}()
	}

	fds := make(map[int]bool)
	peers := make(map[uint16]bool)
	for i := 0; i < clients; i++ {
		select {
		case c := <-conns:
			if fds[c.fd] {
				t.Fatalf("fd %d delivered twice", c.fd)
			}
			fds[c.fd] = true
			if peers[c.peer.Port()] {
				t.Fatalf("peer port %d delivered twice", c.peer.Port())
			}
			peers[c.peer.Port()] = true
			if c.peer.Addr() != netip.MustParseAddr("127.0.0.1") {
				t.Errorf("peer address = %v, want 127.0.0.1", c.peer.Addr())
			}
			_ = unix.Close(c.fd)
		case <-time.After(3 * time.Second):
			t.Fatalf("accepted %d of %d connections before timeout", i, clients)
		}
	}
}

func TestIntegrationDisableParksConnectionsInBacklog(t *testing.T) {
	r := startReactor(t)

	conns := make(chan acceptedConn, 16)
	l, err := listener.NewBind(r, netip.MustParseAddrPort("127.0.0.1:0"), listener.Config{
		Callback: func(l api.Listener, fd int, peer netip.AddrPort, data any) {
			conns <- acceptedConn{l: l, fd: fd, peer: peer, data: data}
		},
		Flags:   api.Reuseable | api.CloseOnFree,
		Backlog: 16,
	})
	if err != nil {
		t.Fatalf("NewBind: %v", err)
	}
	defer l.Close()

	if err := l.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	addr := boundAddr(t, l.FD())
	// The kernel completes the handshake into the backlog even though
	// nothing accepts.
	c, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	select {
	case got := <-conns:
		t.Fatalf("fd %d delivered while disabled", got.fd)
	case <-time.After(300 * time.Millisecond):
	}

	if err := l.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	select {
	case got := <-conns:
		_ = unix.Close(got.fd)
	case <-time.After(3 * time.Second):
		t.Fatal("parked connection never delivered after Enable")
	}
}

func TestIntegrationBindFailureSurfacesAddressInUse(t *testing.T) {
	r := startReactor(t)

	cb := func(api.Listener, int, netip.AddrPort, any) {}
	first, err := listener.NewBind(r, netip.MustParseAddrPort("127.0.0.1:0"), listener.Config{
		Callback: cb, Backlog: 16, Flags: api.CloseOnFree,
	})
	if err != nil {
		t.Fatalf("NewBind: %v", err)
	}
	defer first.Close()

	addr := boundAddr(t, first.FD())
	_, err = listener.NewBind(r, addr, listener.Config{Callback: cb, Backlog: 16})
	if !errors.Is(err, unix.EADDRINUSE) {
		t.Fatalf("second bind to %v: err = %v, want EADDRINUSE", addr, err)
	}
}
