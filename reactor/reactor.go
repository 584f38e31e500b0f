// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral registration bookkeeping and dispatch loop. The
// platform pollers only add/remove descriptors and report which of them
// are readable.

package reactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-listener/api"
)

// poller is the platform readiness primitive. wait fills ready with
// readable descriptors and returns how many it wrote; a zero count after
// the timeout is normal.
type poller interface {
	add(fd int) error
	del(fd int) error
	wait(ready []int, msec int) (int, error)
	close() error
}

// waitSlice is the dispatch batch size per poll cycle.
const waitSlice = 128

// pollMillis bounds one wait so Close and fresh registrations on other
// goroutines are observed without an explicit wakeup channel.
const pollMillis = 100

// waitErrorDelay paces retries after a poller wait failure so a
// persistent fault does not busy-spin the dispatch loop.
const waitErrorDelay = 10 * time.Millisecond

// Reactor dispatches level-triggered read readiness to registered
// handlers. It implements api.Reactor.
type Reactor struct {
	p   poller
	log api.Logger

	mu     sync.Mutex
	regs   map[int]*registration
	closed bool
}

// New creates a Reactor. log may be nil to discard diagnostics.
func New(log api.Logger) (*Reactor, error) {
	if log == nil {
		log = api.NopLogger{}
	}
	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("reactor: %w", err)
	}
	return &Reactor{p: p, log: log, regs: make(map[int]*registration)}, nil
}

// Register implements api.Reactor. The registration is level-triggered
// and persistent: h fires on every poll cycle in which fd is readable,
// until Cancel.
func (r *Reactor) Register(fd int, h api.ReadyHandler) (api.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, api.ErrReactorClosed
	}
	if _, dup := r.regs[fd]; dup {
		return nil, fmt.Errorf("reactor: fd %d already registered", fd)
	}
	if err := r.p.add(fd); err != nil {
		return nil, fmt.Errorf("reactor: register fd %d: %w", fd, err)
	}
	reg := &registration{owner: r, fd: fd, handler: h}
	r.regs[fd] = reg
	return reg, nil
}

// Run polls and dispatches until ctx is cancelled or Close is called.
// Handlers run synchronously on the calling goroutine.
func (r *Reactor) Run(ctx context.Context) error {
	ready := make([]int, waitSlice)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return nil
		}

		n, err := r.p.wait(ready, pollMillis)
		if err != nil {
			r.log.Errorf("reactor: wait: %v", err)
			time.Sleep(waitErrorDelay)
			continue
		}
		for i := 0; i < n; i++ {
			fd := ready[i]
			r.mu.Lock()
			reg := r.regs[fd]
			r.mu.Unlock()
			if reg == nil {
				continue // cancelled between wait and dispatch
			}
			reg.handler(fd)
		}
	}
}

// Close cancels every registration and releases the poller. Run returns
// after its current cycle.
func (r *Reactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for fd := range r.regs {
		if err := r.p.del(fd); err != nil {
			r.log.Errorf("reactor: deregister fd %d on close: %v", fd, err)
		}
		delete(r.regs, fd)
	}
	return r.p.close()
}

// registration is one live read-interest entry.
type registration struct {
	owner   *Reactor
	fd      int
	handler api.ReadyHandler
}

func (g *registration) FD() int { return g.fd }

// Cancel implements api.Registration. The entry is removed only once the
// poller deregistration succeeds, so a failed Cancel leaves the
// registration wholly present and retryable. Cancelling a registration
// that is already gone is a no-op success.
func (g *registration) Cancel() error {
	g.owner.mu.Lock()
	defer g.owner.mu.Unlock()
	if g.owner.regs[g.fd] != g {
		return nil // already cancelled or reactor closed
	}
	if err := g.owner.p.del(g.fd); err != nil {
		return err
	}
	delete(g.owner.regs, g.fd)
	return nil
}
