package reconcile

import (
	"context"
	"testing"

	"github.com/schaermu/vtagsync/internal/git"
	"github.com/schaermu/vtagsync/internal/testutil"
)

// These tests drive the engine against real repositories through the shell client.

func runShell(t *testing.T, repo string, publish bool) *Result {
	t.Helper()
	client := git.NewShellClient(repo, git.ShellOptions{Annotate: true})
	res, err := NewEngine(client, WithLogger(testLogger()), WithPublish(publish)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestShell_RepoWithoutTags(t *testing.T) {
	repo := testutil.InitRepo(t)
	testutil.Commit(t, repo)
	testutil.Commit(t, repo)

	res := runShell(t, repo, false)
	if !res.Succeeded || res.Reason != ReasonNoSemverTags {
		t.Fatalf("got %+v, want succeeded NO_SEMVER_TAGS_FOUND", res)
	}
}

func TestShell_RepoWithoutSemverTags(t *testing.T) {
	repo := testutil.InitRepo(t)
	testutil.Tag(t, repo, "latest", testutil.Commit(t, repo))
	testutil.Tag(t, repo, "minor_fix", testutil.Commit(t, repo))

	res := runShell(t, repo, false)
	if !res.Succeeded || res.Reason != ReasonNoSemverTags {
		t.Fatalf("got %+v, want succeeded NO_SEMVER_TAGS_FOUND", res)
	}
}

func TestShell_FloatingTagUpToDate(t *testing.T) {
	repo := testutil.InitRepo(t)
	sha := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.0.0", sha)
	testutil.Tag(t, repo, "v1", sha)

	res := runShell(t, repo, false)
	if !res.Succeeded || res.Reason != ReasonNoChanges {
		t.Fatalf("got %+v, want succeeded NO_CHANGES", res)
	}
}

func TestShell_CreatesFloatingTag(t *testing.T) {
	repo := testutil.InitRepo(t)
	sha := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.0.0", sha)

	res := runShell(t, repo, false)
	if !res.Succeeded || res.Reason != ReasonMappedTags {
		t.Fatalf("got %+v, want succeeded MAPPED_TAGS", res)
	}
	if got := testutil.TagTarget(t, repo, "v1"); got != sha {
		t.Errorf("v1 = %s, want %s", got, sha)
	}
}

func TestShell_MultipleFloatingTagsMissing(t *testing.T) {
	repo := testutil.InitRepo(t)
	testutil.Commit(t, repo)
	testutil.Commit(t, repo)
	sha1 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.0.0", sha1)
	sha2 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "2.0.0", sha2)
	sha3 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "3.0.0", sha3)

	res := runShell(t, repo, false)
	if res.Reason != ReasonMappedTags {
		t.Fatalf("reason = %s, want MAPPED_TAGS", res.Reason)
	}
	for tag, want := range map[string]string{"v1": sha1, "v2": sha2, "v3": sha3} {
		if got := testutil.TagTarget(t, repo, tag); got != want {
			t.Errorf("%s = %s, want %s", tag, got, want)
		}
		if out, ok := res.Data.Get(tag); !ok || out.State != StateCreated {
			t.Errorf("%s outcome = %+v, want created", tag, out)
		}
	}
}

func TestShell_FloatingTagBehindLatest(t *testing.T) {
	repo := testutil.InitRepo(t)
	testutil.Commit(t, repo)
	sha1 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.0.0", sha1)
	testutil.Tag(t, repo, "v1", sha1)
	sha2 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.1.0", sha2)

	res := runShell(t, repo, false)
	if res.Reason != ReasonMappedTags {
		t.Fatalf("reason = %s, want MAPPED_TAGS", res.Reason)
	}
	if got := testutil.TagTarget(t, repo, "v1"); got != sha2 {
		t.Errorf("v1 = %s, want %s", got, sha2)
	}
	out, _ := res.Data.Get("v1")
	if out.State != StateUpdated || out.OldTarget != sha1 || out.NewTarget != sha2 {
		t.Errorf("v1 outcome = %+v, want updated %s -> %s", out, sha1, sha2)
	}

	// second pass has nothing left to do
	if again := runShell(t, repo, false); again.Reason != ReasonNoChanges {
		t.Errorf("second run reason = %s, want NO_CHANGES", again.Reason)
	}
}

func TestShell_FloatingTagWithoutRelease(t *testing.T) {
	repo := testutil.InitRepo(t)
	testutil.Commit(t, repo)
	sha1 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "v1", sha1)
	sha2 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "2.0.0", sha2)
	testutil.Tag(t, repo, "v2", sha2)

	res := runShell(t, repo, false)
	if !res.Succeeded || res.Reason != ReasonNoChanges {
		t.Fatalf("got %+v, want succeeded NO_CHANGES", res)
	}
	if got := testutil.TagTarget(t, repo, "v1"); got != sha1 {
		t.Errorf("v1 moved to %s", got)
	}
}

func TestShell_ReleaseBranches(t *testing.T) {
	repo := testutil.InitRepo(t)
	testutil.Commit(t, repo)
	sha1 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.0.0", sha1)
	sha2 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.1.0", sha2)
	testutil.Tag(t, repo, "v1", sha2)
	testutil.Git(t, repo, "checkout", "-b", "release/v1", sha2)
	testutil.Git(t, repo, "checkout", "main")
	sha3 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "2.0.0", sha3)
	testutil.Tag(t, repo, "v2", sha3)
	testutil.Git(t, repo, "checkout", "release/v1")
	sha4 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.2.1", sha4)
	testutil.Git(t, repo, "checkout", "main")
	sha5 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "2.1.0", sha5)

	res := runShell(t, repo, false)
	if !res.Succeeded || res.Reason != ReasonMappedTags {
		t.Fatalf("got %+v, want succeeded MAPPED_TAGS", res)
	}
	if got := testutil.TagTarget(t, repo, "v1"); got != sha4 {
		t.Errorf("v1 = %s, want %s", got, sha4)
	}
	if got := testutil.TagTarget(t, repo, "v2"); got != sha5 {
		t.Errorf("v2 = %s, want %s", got, sha5)
	}
}

func TestShell_PublishesToRemote(t *testing.T) {
	repo, remote := testutil.InitRepoWithRemote(t)
	sha1 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.0.0", sha1)
	testutil.Tag(t, repo, "v1", sha1)
	testutil.Git(t, repo, "push", "origin", "main", "--tags")
	sha2 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "1.1.0", sha2)
	sha3 := testutil.Commit(t, repo)
	testutil.Tag(t, repo, "2.0.0", sha3)

	res := runShell(t, repo, true)
	if res.Reason != ReasonMappedTags {
		t.Fatalf("got %+v, want MAPPED_TAGS", res)
	}
	if got := testutil.TagTarget(t, remote, "v1"); got != sha2 {
		t.Errorf("remote v1 = %s, want %s", got, sha2)
	}
	if got := testutil.TagTarget(t, remote, "v2"); got != sha3 {
		t.Errorf("remote v2 = %s, want %s", got, sha3)
	}
}

func TestShell_PublishFailureStopsRun(t *testing.T) {
	// no remote configured: the first push fails
	repo := testutil.InitRepo(t)
	testutil.Tag(t, repo, "1.0.0", testutil.Commit(t, repo))
	testutil.Tag(t, repo, "2.0.0", testutil.Commit(t, repo))

	res := runShell(t, repo, true)
	if res.Succeeded || res.Reason != ReasonFailedToRemapTag {
		t.Fatalf("got %+v, want failed FAILED_TO_REMAP_TAG", res)
	}
	if res.Message == "" {
		t.Error("expected the push error as message")
	}
	if res.Data.Len() != 0 {
		t.Errorf("expected no recorded outcomes, got %v", res.Data.Keys())
	}
	if testutil.HasTag(t, repo, "v2") {
		t.Error("v2 must not be attempted after v1 failed")
	}
}
