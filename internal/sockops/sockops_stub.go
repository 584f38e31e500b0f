//go:build !linux && !darwin && !windows

// File: internal/sockops/sockops_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without a supported socket backend.

package sockops

import (
	"net/netip"

	"github.com/momentics/hioload-listener/api"
)

type stubOps struct{}

// Native returns a SocketOps whose every operation fails with
// api.ErrNotSupported.
func Native() api.SocketOps { return stubOps{} }

func (stubOps) Socket(api.Family) (int, error) { return -1, api.ErrNotSupported }
func (stubOps) SetNonblock(int) error          { return api.ErrNotSupported }
func (stubOps) SetKeepAlive(int) error         { return api.ErrNotSupported }
func (stubOps) SetReuseAddr(int) error         { return api.ErrNotSupported }
func (stubOps) SetCloseOnExec(int) error       { return api.ErrNotSupported }
func (stubOps) Bind(int, netip.AddrPort) error { return api.ErrNotSupported }
func (stubOps) Listen(int, int) error          { return api.ErrNotSupported }
func (stubOps) Accept(int) (int, netip.AddrPort, error) {
	return -1, netip.AddrPort{}, api.ErrNotSupported
}
func (stubOps) LocalAddr(int) (netip.AddrPort, error) { return netip.AddrPort{}, api.ErrNotSupported }
func (stubOps) Close(int) error                       { return api.ErrNotSupported }
