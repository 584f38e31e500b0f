// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across hioload-listener packages.

package api

import "errors"

var (
	// ErrListenerClosed is returned by operations on a handle whose Close
	// has already run.
	ErrListenerClosed = errors.New("listener is closed")

	// ErrBacklogZero is returned by the bind helper when a zero backlog is
	// requested. The raw constructor treats zero as "listen() was already
	// called by the caller" instead.
	ErrBacklogZero = errors.New("listen backlog of zero")

	// ErrMissingCallback is returned when a listener is constructed
	// without an accept callback.
	ErrMissingCallback = errors.New("accept callback is required")

	// ErrWouldBlock is the platform-neutral "no connection pending"
	// condition. SocketOps implementations may return it directly or a
	// platform errno carrying the same meaning; the accept loop treats
	// both as the normal end of a drain cycle.
	ErrWouldBlock = errors.New("no connection pending")

	// ErrNotSupported is returned by platform facilities that do not
	// exist on the current build target.
	ErrNotSupported = errors.New("operation not supported on this platform")

	// ErrReactorClosed is returned when registering against a reactor
	// that has been shut down.
	ErrReactorClosed = errors.New("reactor is closed")

	// ErrPortClosed is returned when posting against a completion port
	// that has been shut down.
	ErrPortClosed = errors.New("completion port is closed")
)
