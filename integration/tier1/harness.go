//go:build integration

package tier1

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/vtagsync/internal/testutil"
)

const defaultTimeout = 2 * time.Minute

// Harness runs the compiled vtagsync binary against throwaway repositories
type Harness struct {
	t   *testing.T
	bin string
}

// NewHarness builds the binary once for the calling test
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	root, err := testutil.FindProjectRoot()
	if err != nil {
		t.Fatalf("get project root: %v", err)
	}

	return &Harness{
		t:   t,
		bin: testutil.BuildBinary(t, root, "cmd/vtagsync"),
	}
}

// Result is the outcome of one binary invocation
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes vtagsync with args and waits for it to exit
func (h *Harness) Run(ctx context.Context, args ...string) Result {
	h.t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, &testWriter{t: h.t, prefix: "[vtagsync] "})

	res := Result{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			h.t.Fatalf("run vtagsync: %v", err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res
}

// Start launches a long-running vtagsync process. The process is killed on cleanup.
func (h *Harness) Start(ctx context.Context, args ...string) *exec.Cmd {
	h.t.Helper()

	cmd := exec.CommandContext(ctx, h.bin, args...)
	cmd.Stdout = &testWriter{t: h.t, prefix: "[serve] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[serve] "}
	if err := cmd.Start(); err != nil {
		h.t.Fatalf("start vtagsync: %v", err)
	}

	h.t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)
