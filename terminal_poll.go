//go:build linux || freebsd || netbsd || openbsd || dragonfly

package kittygfx

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Darwin is left out: its poll reports POLLNVAL for terminal devices.

// pollRead waits until the input side has bytes to read. Nothing is consumed, so
// input that arrives after a timeout stays queued for the next reader.
func (t *TTY) pollRead(timeout time.Duration) (bool, error) {
	fd, err := t.fd()
	if err != nil {
		return false, err
	}
	deadline := time.Now().Add(timeout)
	for {
		// round up so a sub-millisecond remainder still waits
		ms := int((time.Until(deadline) + time.Millisecond - 1) / time.Millisecond)
		if ms <= 0 {
			return false, nil
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to poll terminal: %w", err)
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return false, fmt.Errorf("failed to poll terminal: %w", unix.EBADF)
		}
		// POLLHUP and POLLERR are reported by the Read that follows
		return true, nil
	}
}
