// File: internal/dispatch/dispatch.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Serial task queue used by the completion backend. Completion handlers
// re-arm their accept slot after delivering a connection; running the
// whole chain inline on the port worker would grow the call stack with
// every synchronous completion. Routing each completion through this
// queue keeps the stack depth constant: the worker only enqueues, and one
// dedicated goroutine drains in FIFO order.

package dispatch

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatch: queue closed")

// Queue runs submitted functions one at a time, in submission order, on a
// single goroutine owned by the queue.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  *queue.Queue
	closed bool
	done   chan struct{}
}

// New creates a Queue and starts its drain goroutine.
func New() *Queue {
	q := &Queue{
		tasks: queue.New(),
		done:  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Submit enqueues fn. It never blocks on the consumer.
func (q *Queue) Submit(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.tasks.Add(fn)
	q.cond.Signal()
	return nil
}

// Close stops the queue: Submit fails afterwards, tasks already submitted
// still run. Close does not wait, so it is safe to call from inside a
// running task; use Done to observe drain completion.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Signal()
}

// Done is closed once the drain goroutine has run every submitted task
// and exited.
func (q *Queue) Done() <-chan struct{} { return q.done }

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for q.tasks.Length() == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.tasks.Length() == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.tasks.Remove().(func())
		q.mu.Unlock()
		fn()
	}
}
