//go:build !linux && !darwin && !windows

// File: listener/retriable_stub.go
// Author: momentics <momentics@gmail.com>

package listener

import (
	"errors"

	"github.com/momentics/hioload-listener/api"
)

func acceptRetriable(err error) bool {
	return errors.Is(err, api.ErrWouldBlock)
}
