//go:build unix

package readiness

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const readable = unix.POLLIN | unix.POLLPRI | unix.POLLERR | unix.POLLHUP | unix.POLLNVAL

// pollFds runs poll(2) over the watches. Error and hang-up conditions count
// as readable so the next read surfaces the fault. An interrupted wait is a
// timeout.
func pollFds(watches []watch, timeout time.Duration) ([]bool, bool, error) {
	fds := make([]unix.PollFd, len(watches))
	for i, w := range watches {
		fds[i] = unix.PollFd{Fd: int32(w.fd), Events: unix.POLLIN}
	}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if errors.Is(err, unix.EINTR) {
		return make([]bool, len(watches)), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("poll: %w", err)
	}
	ready := make([]bool, len(watches))
	for i := range fds {
		ready[i] = fds[i].Revents&readable != 0
	}
	return ready, n == 0, nil
}
