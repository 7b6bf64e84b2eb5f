// Package testutil holds git repository fixtures shared by tests.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

var commitSeq atomic.Int64

// Git runs a git command in dir and fails the test on error.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	full := append([]string{"-C", dir}, args...)
	out, err := exec.Command("git", full...).CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// InitRepo creates a repository with a configured identity on branch main.
func InitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	Git(t, dir, "init", "--initial-branch=main")
	Git(t, dir, "config", "user.email", "test@example.com")
	Git(t, dir, "config", "user.name", "Test User")
	Git(t, dir, "config", "tag.gpgSign", "false")
	return dir
}

// InitRepoWithRemote creates a repository whose "origin" is a fresh bare repository.
// It returns the work tree and the bare remote directory.
func InitRepoWithRemote(t *testing.T) (string, string) {
	t.Helper()
	remote := filepath.Join(t.TempDir(), "origin.git")
	if out, err := exec.Command("git", "init", "--bare", remote).CombinedOutput(); err != nil {
		t.Fatalf("git init --bare: %v: %s", err, out)
	}
	repo := InitRepo(t)
	Git(t, repo, "remote", "add", "origin", remote)
	return repo, remote
}

// Commit writes a unique file, commits it and returns the commit hash.
func Commit(t *testing.T, dir string) string {
	t.Helper()
	n := commitSeq.Add(1)
	name := fmt.Sprintf("file-%d.txt", n)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(fmt.Sprintf("content %d\n", n)), 0644); err != nil {
		t.Fatal(err)
	}
	Git(t, dir, "add", name)
	Git(t, dir, "commit", "-m", "update "+name)
	return Git(t, dir, "rev-parse", "HEAD")
}

// Tag creates an annotated tag at sha.
func Tag(t *testing.T, dir, name, sha string) {
	t.Helper()
	Git(t, dir, "tag", "-a", name, sha, "-m", "")
}

// LightweightTag creates a lightweight tag at sha.
func LightweightTag(t *testing.T, dir, name, sha string) {
	t.Helper()
	Git(t, dir, "tag", name, sha)
}

// TagTarget returns the commit a tag points at.
func TagTarget(t *testing.T, dir, tag string) string {
	t.Helper()
	return Git(t, dir, "rev-list", "-n", "1", tag)
}

// HasTag reports whether dir has the tag.
func HasTag(t *testing.T, dir, tag string) bool {
	t.Helper()
	out := Git(t, dir, "tag", "--list", tag)
	return out == tag
}
