package listener_test

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/momentics/hioload-listener/api"
	"github.com/momentics/hioload-listener/fake"
	"github.com/momentics/hioload-listener/listener"
)

const completionListenFD = 9

// chanRecorder delivers callback invocations to the test goroutine; the
// completion backend dispatches on its own goroutine.
type chanRecorder struct {
	ch chan acceptedConn
}

func newChanRecorder() *chanRecorder {
	return &chanRecorder{ch: make(chan acceptedConn, 64)}
}

func (r *chanRecorder) callback(l api.Listener, fd int, peer netip.AddrPort, data any) {
	r.ch <- acceptedConn{l: l, fd: fd, peer: peer, data: data}
}

func (r *chanRecorder) next(t *testing.T) acceptedConn {
	t.Helper()
	select {
	case c := <-r.ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an accepted connection")
		return acceptedConn{}
	}
}

func (r *chanRecorder) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case c := <-r.ch:
		t.Fatalf("unexpected delivery of fd %d", c.fd)
	case <-time.After(d):
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", what)
}

func newCompletion(t *testing.T, port *fake.Port, sock *fake.SocketOps, rec *chanRecorder, cfg listener.Config) *listener.Completion {
	t.Helper()
	cfg.Callback = rec.callback
	cfg.Sockets = sock
	if cfg.Log == nil {
		cfg.Log = fake.NewLogger()
	}
	l, err := listener.NewCompletion(port, completionListenFD, cfg)
	if err != nil {
		t.Fatalf("NewCompletion: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestCompletionArmsSlotPoolAtConstruction(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	newCompletion(t, port, sock, newChanRecorder(), listener.Config{Backlog: 16, Slots: 3})

	if got := port.Pending(); got != 3 {
		t.Fatalf("outstanding accepts = %d, want 3", got)
	}
	if b, ok := sock.Backlog(completionListenFD); !ok || b != 16 {
		t.Errorf("backlog = %d (ok=%v), want 16", b, ok)
	}
	// Pending sockets come straight from the fake's counter.
	for fd := 1000; fd < 1003; fd++ {
		if !port.Associated(fd) {
			t.Errorf("pending socket %d not associated with the port", fd)
		}
		if !sock.Nonblocking(fd) {
			t.Errorf("pending socket %d not non-blocking", fd)
		}
	}
}

func TestCompletionDeliversAndRearms(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	rec := newChanRecorder()
	l := newCompletion(t, port, sock, rec, listener.Config{Backlog: 16, UserData: "ctx"})

	peer := netip.MustParseAddrPort("192.0.2.1:5000")
	conn := port.Complete(peer)

	got := rec.next(t)
	if got.fd != conn {
		t.Errorf("delivered fd %d, want %d", got.fd, conn)
	}
	if got.peer != peer {
		t.Errorf("peer = %v, want %v", got.peer, peer)
	}
	if got.data != "ctx" {
		t.Errorf("user data = %v, want ctx", got.data)
	}
	if got.l != api.Listener(l) {
		t.Error("wrong listener handle in callback")
	}
	if !port.Finished(conn) {
		t.Error("accept context not finalized before delivery")
	}
	eventually(t, "slot re-posted after delivery", func() bool { return port.Pending() == 1 })
}

func TestCompletionRearmLiveness(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	rec := newChanRecorder()
	newCompletion(t, port, sock, rec, listener.Config{Backlog: 16})

	seen := make(map[int]bool)
	for i := 0; i < 50; i++ {
		eventually(t, "slot posted", func() bool { return port.Pending() == 1 })
		peer := netip.AddrPortFrom(netip.MustParseAddr("192.0.2.7"), uint16(2000+i))
		conn := port.Complete(peer)
		got := rec.next(t)
		if got.fd != conn {
			t.Fatalf("cycle %d: delivered fd %d, want %d", i, got.fd, conn)
		}
		if seen[got.fd] {
			t.Fatalf("cycle %d: fd %d delivered twice", i, got.fd)
		}
		seen[got.fd] = true
	}
}

func TestCompletionDisableHoldsDelivery(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	rec := newChanRecorder()
	l := newCompletion(t, port, sock, rec, listener.Config{Backlog: 16})

	if err := l.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	peer := netip.MustParseAddrPort("192.0.2.2:6000")
	conn := port.Complete(peer)
	rec.expectNone(t, 100*time.Millisecond)

	if err := l.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	got := rec.next(t)
	if got.fd != conn || got.peer != peer {
		t.Errorf("held connection delivered as (fd=%d peer=%v), want (fd=%d peer=%v)",
			got.fd, got.peer, conn, peer)
	}
	eventually(t, "slot re-posted after enable", func() bool { return port.Pending() == 1 })
}

func TestCompletionEnableDeliversEveryHeldSlot(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	rec := newChanRecorder()
	l := newCompletion(t, port, sock, rec, listener.Config{Backlog: 16, Slots: 3})

	if err := l.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	peerA := netip.MustParseAddrPort("192.0.2.10:6001")
	peerB := netip.MustParseAddrPort("192.0.2.11:6002")
	port.Complete(peerA)
	port.Complete(peerB)
	rec.expectNone(t, 100*time.Millisecond)

	if err := l.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	got := map[netip.AddrPort]bool{rec.next(t).peer: true, rec.next(t).peer: true}
	if !got[peerA] || !got[peerB] {
		t.Fatalf("held connections delivered for peers %v, want %v and %v", got, peerA, peerB)
	}
	eventually(t, "every slot re-posted after enable", func() bool { return port.Pending() == 3 })
}

func TestCompletionEnableDisableIdempotent(t *testing.T) {
	port := fake.NewPort()
	l := newCompletion(t, port, fake.NewSocketOps(), newChanRecorder(), listener.Config{Backlog: 16})

	if err := l.Enable(); err != nil {
		t.Fatalf("Enable while enabled: %v", err)
	}
	if err := l.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if err := l.Disable(); err != nil {
		t.Fatalf("Disable while disabled: %v", err)
	}
	if got := port.Pending(); got != 1 {
		t.Errorf("outstanding accepts changed across enable/disable: %d", got)
	}
}

func TestCompletionFailedOperationLoggedAndRearmed(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	log := fake.NewLogger()
	rec := newChanRecorder()
	newCompletion(t, port, sock, rec, listener.Config{Backlog: 16, Log: log})

	conn := port.Fail(errors.New("connection reset"))
	rec.expectNone(t, 100*time.Millisecond)

	eventually(t, "failed operation logged", func() bool { return log.HasError("asynchronous accept") })
	eventually(t, "pending socket released", func() bool { return sock.Closed(conn) })
	eventually(t, "slot re-posted after failure", func() bool { return port.Pending() == 1 })
}

func TestCompletionRearmFailureLeavesSlotInert(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	log := fake.NewLogger()
	rec := newChanRecorder()
	newCompletion(t, port, sock, rec, listener.Config{Backlog: 16, Log: log})

	port.PostErr = errors.New("port saturated")
	port.Complete(netip.MustParseAddrPort("192.0.2.3:7000"))
	rec.next(t) // the connection itself is still delivered

	eventually(t, "re-arm failure logged", func() bool { return log.HasError("slot inert") })
	if got := port.Pending(); got != 0 {
		t.Errorf("outstanding accepts = %d, want 0 (slot inert)", got)
	}
}

func TestCompletionConstructionFailureReleasesEverything(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	port.AssociateErr = errors.New("association refused")

	_, err := listener.NewCompletion(port, completionListenFD, listener.Config{
		Callback: newChanRecorder().callback, Backlog: 16,
		Sockets: sock, Log: fake.NewLogger(),
	})
	if err == nil {
		t.Fatal("expected construction failure")
	}
	if !sock.Closed(1000) {
		t.Error("pending socket leaked after failed construction")
	}
	if port.Pending() != 0 {
		t.Error("accept operation left outstanding after failed construction")
	}
}

func TestCompletionPartialPoolFailureReleasesArmedSlots(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()

	// The first slot arms fine; the second slot's socket creation fails.
	sock.SocketErrAfter(1, errors.New("out of descriptors"))

	_, err := listener.NewCompletion(port, completionListenFD, listener.Config{
		Callback: newChanRecorder().callback, Backlog: 16, Slots: 2,
		Sockets: sock, Log: fake.NewLogger(),
	})
	if err == nil {
		t.Fatal("expected construction failure")
	}
	if !sock.Closed(1000) {
		t.Error("armed slot's pending socket leaked after failed construction")
	}
}

func TestCompletionCloseReleasesSlotsAndDescriptor(t *testing.T) {
	port := fake.NewPort()
	sock := fake.NewSocketOps()
	rec := newChanRecorder()
	l := newCompletion(t, port, sock, rec, listener.Config{Backlog: 16, Flags: api.CloseOnFree})

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sock.Closed(1000) {
		t.Error("slot's pending socket not released by Close")
	}
	if !sock.Closed(completionListenFD) {
		t.Error("listening descriptor not closed despite CloseOnFree")
	}
	if err := l.Close(); !errors.Is(err, api.ErrListenerClosed) {
		t.Fatalf("second Close = %v, want ErrListenerClosed", err)
	}

	// A straggling completion after Close must not be delivered.
	port.Complete(netip.MustParseAddrPort("192.0.2.4:8000"))
	rec.expectNone(t, 100*time.Millisecond)
}

func TestCompletionAccessors(t *testing.T) {
	port := fake.NewPort()
	l := newCompletion(t, port, fake.NewSocketOps(), newChanRecorder(), listener.Config{Backlog: 16})
	if l.FD() != completionListenFD {
		t.Errorf("FD() = %d, want %d", l.FD(), completionListenFD)
	}
	if l.Port() != api.CompletionPort(port) {
		t.Error("Port() does not return the owning completion port")
	}
}
