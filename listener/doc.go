// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package listener turns a bound, listening socket into a stream of
// accepted connections delivered to a user callback. Two backends exist
// behind the api.Listener contract: Readiness reacts to level-triggered
// read readiness from an api.Reactor and drains the backlog on every
// wakeup; Completion keeps a pool of pre-posted asynchronous accepts on
// an api.CompletionPort and re-arms each slot after it delivers. The
// backend is chosen by constructor and fixed for the handle's lifetime.
package listener
