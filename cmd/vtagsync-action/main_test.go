package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaermu/vtagsync/internal/testutil"
)

func TestRun_SetsResponseOutput(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "output")
	t.Setenv("GITHUB_OUTPUT", outputFile)

	repo, remote := testutil.InitRepoWithRemote(t)
	first := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "v1.0.0", first)
	second := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "v2.0.0", second)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{repo}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstdout: %s\nstderr: %s", code, stdout.String(), stderr.String())
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) < 3 || !strings.HasPrefix(lines[0], "response<<") {
		t.Fatalf("unexpected output file: %q", string(data))
	}

	var res struct {
		Succeeded bool   `json:"succeeded"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &res); err != nil {
		t.Fatalf("invalid response JSON %q: %v", lines[1], err)
	}
	if !res.Succeeded || res.Reason != "MAPPED_TAGS" {
		t.Errorf("unexpected response: %+v", res)
	}

	// Floating tags were pushed
	if got := testutil.TagTarget(t, remote, "v1"); got != first {
		t.Errorf("expected remote v1 at %s, got %s", first, got)
	}
	if got := testutil.TagTarget(t, remote, "v2"); got != second {
		t.Errorf("expected remote v2 at %s, got %s", second, got)
	}
}

func TestRun_NoPush(t *testing.T) {
	t.Setenv("GITHUB_OUTPUT", filepath.Join(t.TempDir(), "output"))

	repo, remote := testutil.InitRepoWithRemote(t)
	sha := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "v3.1.4", sha)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--no-push", repo}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr.String())
	}

	if !testutil.HasTag(t, repo, "v3") {
		t.Error("expected v3 to be created locally")
	}
	if testutil.HasTag(t, remote, "v3") {
		t.Error("expected v3 not to be pushed")
	}
}

func TestRun_FailureMarksStepFailed(t *testing.T) {
	t.Setenv("GITHUB_OUTPUT", filepath.Join(t.TempDir(), "output"))

	// No remote configured, so publishing the new tag fails
	repo := testutil.InitRepo(t)
	sha := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "v1.0.0", sha)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{repo}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "::error::") {
		t.Errorf("expected ::error:: command, got %q", stdout.String())
	}
}

func TestRun_NotARepository(t *testing.T) {
	t.Setenv("GITHUB_OUTPUT", filepath.Join(t.TempDir(), "output"))

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{t.TempDir()}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stdout.String(), "::error::failed to list tags") {
		t.Errorf("expected list failure, got %q", stdout.String())
	}
}

func TestRun_Flags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--help"}, &stdout, &stderr); code != 0 {
		t.Errorf("expected --help to exit 0, got %d", code)
	}
	if !strings.Contains(stdout.String(), "--no-push") {
		t.Errorf("expected help to mention --no-push, got %q", stdout.String())
	}

	stdout.Reset()
	if code := run(context.Background(), []string{"--bogus"}, &stdout, &stderr); code != 2 {
		t.Errorf("expected unknown flag to exit 2, got %d", code)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
