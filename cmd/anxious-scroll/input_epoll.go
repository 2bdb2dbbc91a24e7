//go:build linux

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// errReadInterrupted is returned by a wait that was woken by interrupt.
// It wraps os.ErrClosed so the session loop treats it as end of input.
var errReadInterrupted = fmt.Errorf("read interrupted: %w", os.ErrClosed)

// fdWaiter blocks until a file descriptor is readable or until it is woken.
//
// The evdev library leaves the device fd in blocking mode, so closing the
// file does not interrupt a read already in progress. Waiting in epoll on
// both the device and an eventfd lets another goroutine end the wait.
type fdWaiter struct {
	epfd   int
	fd     int
	wakeFd int
	events []unix.EpollEvent
}

func newFdWaiter(fd int) (*fdWaiter, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	for _, watch := range []int{fd, wakeFd} {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(watch)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, watch, &ev); err != nil {
			_ = unix.Close(wakeFd)
			_ = unix.Close(epfd)
			return nil, fmt.Errorf("epoll_ctl_add fd=%d: %w", watch, err)
		}
	}

	return &fdWaiter{
		epfd:   epfd,
		fd:     fd,
		wakeFd: wakeFd,
		events: make([]unix.EpollEvent, 2),
	}, nil
}

// wait returns nil once fd has data, errReadInterrupted after wake, and an
// error wrapping ENODEV when the fd reports an error or hangup.
func (w *fdWaiter) wait() error {
	for {
		n, err := unix.EpollWait(w.epfd, w.events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		ready := false
		for _, ev := range w.events[:n] {
			switch int(ev.Fd) {
			case w.wakeFd:
				return errReadInterrupted
			case w.fd:
				if ev.Events&unix.EPOLLIN != 0 {
					ready = true
				} else if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
					return fmt.Errorf("device error/hangup (fd=%d): %w", w.fd, unix.ENODEV)
				}
			}
		}
		if ready {
			return nil
		}
	}
}

// wake ends the current wait and every later one. Safe from any goroutine.
func (w *fdWaiter) wake() {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	_, _ = unix.Write(w.wakeFd, b[:])
}

// close releases the epoll and eventfd descriptors, not the watched fd.
// Call it only once no wait is in progress.
func (w *fdWaiter) close() {
	_ = unix.Close(w.wakeFd)
	_ = unix.Close(w.epfd)
}
