// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package completion provides the api.CompletionPort implementation:
// Windows I/O completion ports with AcceptEx-based asynchronous accepts.
// Platforms without a native completion facility get a constructor that
// fails, mirroring the platform-conditional nature of the completion
// listener backend.
package completion
