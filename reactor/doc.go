// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides a level-triggered read-readiness reactor
// implementing api.Reactor: epoll on Linux, kqueue on Darwin, a stub
// elsewhere. One goroutine running Run dispatches every registered
// handler; nothing in this package spawns goroutines on its own.
package reactor
