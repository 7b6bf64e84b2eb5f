package activation

import (
	"net"
	"os"
	"strconv"
	"testing"
)

func TestActivatedFDs(t *testing.T) {
	self := strconv.Itoa(os.Getpid())

	tests := []struct {
		name    string
		pid     string
		fds     string
		want    int
		wantErr bool
	}{
		{name: "no environment", pid: "", fds: "", want: 0},
		{name: "other process", pid: "99999999", fds: "1", want: 0},
		{name: "invalid pid", pid: "not-a-number", fds: "1", wantErr: true},
		{name: "invalid fds", pid: self, fds: "not-a-number", wantErr: true},
		{name: "missing fds", pid: self, fds: "", want: 0},
		{name: "zero fds", pid: self, fds: "0", want: 0},
		{name: "negative fds", pid: self, fds: "-2", want: 0},
		{name: "two fds", pid: self, fds: "2", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LISTEN_PID", tt.pid)
			t.Setenv("LISTEN_FDS", tt.fds)

			got, err := activatedFDs()
			if (err != nil) != tt.wantErr {
				t.Fatalf("activatedFDs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("activatedFDs() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestListeners_NotActivated(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	listeners, err := Listeners()
	if err != nil {
		t.Fatalf("Listeners() unexpected error: %v", err)
	}
	if listeners != nil {
		t.Errorf("expected nil listeners, got %v", listeners)
	}
}

func TestListeners_InvalidPID(t *testing.T) {
	t.Setenv("LISTEN_PID", "not-a-number")
	t.Setenv("LISTEN_FDS", "1")

	if _, err := Listeners(); err == nil {
		t.Error("expected error for invalid LISTEN_PID, got nil")
	}
}

func TestListen_FallsBackToTCP(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	l, activated, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() unexpected error: %v", err)
	}
	defer func() {
		_ = l.Close()
	}()

	if activated {
		t.Error("expected a non-activated listener")
	}
	if _, ok := l.Addr().(*net.TCPAddr); !ok {
		t.Errorf("expected TCP listener, got %T", l.Addr())
	}
}

func TestListen_InvalidAddr(t *testing.T) {
	t.Setenv("LISTEN_PID", "")

	if _, _, err := Listen("256.0.0.1:99999"); err == nil {
		t.Error("expected error for invalid address")
	}
}

func TestListen_ActivationError(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "bogus")

	if _, _, err := Listen("127.0.0.1:0"); err == nil {
		t.Error("expected activation error to be returned")
	}
}
