//go:build darwin
// +build darwin

// File: reactor/kqueue_darwin.go
// Author: momentics <momentics@gmail.com>
//
// Darwin kqueue(2) poller. EV_ADD without EV_CLEAR gives level-triggered
// semantics matching the Linux backend.

package reactor

import (
	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq     int
	events []unix.Kevent_t
}

func newPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) add(fd int) error {
	changes := []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) del(fd int) error {
	changes := []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_DELETE,
	}}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) wait(ready []int, msec int) (int, error) {
	if len(p.events) < len(ready) {
		p.events = make([]unix.Kevent_t, len(ready))
	}
	ts := unix.NsecToTimespec(int64(msec) * 1e6)
	n, err := unix.Kevent(p.kq, nil, p.events[:len(ready)], &ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		ready[i] = int(p.events[i].Ident)
	}
	return n, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}
