// Package activation obtains the daemon's listening socket, preferring one
// handed over by systemd socket activation.
package activation

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// Systemd passes file descriptors starting at fd 3
// (0=stdin, 1=stdout, 2=stderr)
const firstFD = 3

// Listen returns the first systemd-activated listener when the process was
// socket activated, otherwise a fresh TCP listener on addr. The boolean
// reports whether the listener came from systemd.
func Listen(addr string) (net.Listener, bool, error) {
	listeners, err := Listeners()
	if err != nil {
		return nil, false, err
	}

	if len(listeners) > 0 {
		// Only the first socket is served; release the rest
		for _, l := range listeners[1:] {
			_ = l.Close()
		}
		return listeners[0], true, nil
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, false, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return l, false, nil
}

// Listeners returns the systemd-activated listeners, or nil when the process
// was not socket activated.
func Listeners() ([]net.Listener, error) {
	numFDs, err := activatedFDs()
	if err != nil || numFDs == 0 {
		return nil, err
	}

	listeners := make([]net.Listener, 0, numFDs)
	for i := 0; i < numFDs; i++ {
		fd := firstFD + i
		file := os.NewFile(uintptr(fd), fmt.Sprintf("systemd-socket-%d", i))
		if file == nil {
			closeAll(listeners)
			return nil, fmt.Errorf("failed to create file for fd %d", fd)
		}

		listener, err := net.FileListener(file)
		// FileListener dups the descriptor
		_ = file.Close()
		if err != nil {
			closeAll(listeners)
			return nil, fmt.Errorf("failed to create listener from fd %d: %w", fd, err)
		}

		listeners = append(listeners, listener)
	}

	// Unset the environment variables so child processes (git) don't inherit them
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")

	return listeners, nil
}

// activatedFDs returns how many descriptors systemd passed to this process.
func activatedFDs() (int, error) {
	pidStr := os.Getenv("LISTEN_PID")
	if pidStr == "" {
		return 0, nil
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid LISTEN_PID %q: %w", pidStr, err)
	}
	if pid != os.Getpid() {
		return 0, nil
	}

	fdsStr := os.Getenv("LISTEN_FDS")
	if fdsStr == "" {
		return 0, nil
	}

	numFDs, err := strconv.Atoi(fdsStr)
	if err != nil {
		return 0, fmt.Errorf("invalid LISTEN_FDS %q: %w", fdsStr, err)
	}
	if numFDs < 0 {
		return 0, nil
	}
	return numFDs, nil
}

func closeAll(listeners []net.Listener) {
	for _, l := range listeners {
		_ = l.Close()
	}
}
