// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api declares the boundary contracts of hioload-listener: the
// listener handle itself, the readiness reactor and completion port it is
// driven by, the socket-setup capability it configures descriptors with,
// and the diagnostic sink it reports autonomous-loop errors to.
package api
