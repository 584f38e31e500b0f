// File: api/completion.go
// Author: momentics <momentics@gmail.com>
//
// Completion-port interface consumed by the completion backend. Only
// platforms with a native completion facility (Windows IOCP) provide a
// real implementation; the backend itself is written against this
// interface and is platform neutral.

package api

import "net/netip"

// CompletionHandler receives the outcome of one posted accept operation.
// err is nil when the operation delivered a connected socket. Handlers run
// on a port worker goroutine and must hand off promptly.
type CompletionHandler func(err error)

// CompletionPort is the asynchronous-accept facility. One port is shared
// by any number of listeners; the port owns the worker goroutines that
// wait for completions.
type CompletionPort interface {
	// Associate binds a socket to the port so operations posted on it
	// deliver completions here.
	Associate(fd int) error

	// PostAccept arms one asynchronous accept: the next connection on
	// listenFD is established into connFD and the local plus remote
	// address records are written into buf. buf must stay alive and
	// untouched until done fires. done fires exactly once per successful
	// post.
	PostAccept(listenFD, connFD int, buf []byte, done CompletionHandler) error

	// AcceptAddrs extracts the local and remote address records written
	// into buf by a completed accept.
	AcceptAddrs(buf []byte) (local, remote netip.AddrPort, err error)

	// FinishAccept applies the post-accept socket context to connFD so it
	// behaves as a regular connected socket (SO_UPDATE_ACCEPT_CONTEXT on
	// Windows).
	FinishAccept(listenFD, connFD int) error

	// Close shuts the port down. In-flight operations complete with an
	// error or are dropped; see the implementation for ordering notes.
	Close() error
}
