package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Client is the version-control collaborator the reconciler drives.
// Every call is synchronous and independently failable.
type Client interface {
	// ListTags returns every tag name in the repository
	ListTags(ctx context.Context) ([]string, error)
	// ResolveTarget returns the commit a tag points at; fails if the tag does not exist
	ResolveTarget(ctx context.Context, tag string) (string, error)
	// CreateTag creates name pointing at target; fails if name already exists
	CreateTag(ctx context.Context, name, target string) error
	// ForceRetag moves name to target, overwriting any previous target
	ForceRetag(ctx context.Context, name, target string) error
	// Publish pushes the local state of tag to the remote
	Publish(ctx context.Context, tag string, force bool) error
}

// Fetcher is implemented by clients that keep a local copy of the tag state
// which has to be refreshed from the remote before a run.
type Fetcher interface {
	FetchTags(ctx context.Context) error
}

// ResolveTargets resolves each name with one sequential lookup.
func ResolveTargets(ctx context.Context, c Client, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		target, err := c.ResolveTarget(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = target
	}
	return out, nil
}

// ShellOptions configures a ShellClient.
type ShellOptions struct {
	// Remote is the remote tags are published to and fetched from (default "origin")
	Remote string
	// Annotate creates annotated floating tags instead of lightweight ones
	Annotate bool
	// Message is the annotation message for annotated tags
	Message string
	// RemoteURL decides which auth method applies; empty disables auth setup
	RemoteURL      string
	SSHKeyFile     string
	HTTPSTokenFile string
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct {
	repoDir string
	opts    ShellOptions
}

// NewShellClient creates a new git client operating on the repository in repoDir
func NewShellClient(repoDir string, opts ShellOptions) *ShellClient {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	return &ShellClient{
		repoDir: repoDir,
		opts:    opts,
	}
}

// ListTags lists tags newest version first. The order is a convenience; callers
// must not rely on it for correctness.
func (c *ShellClient) ListTags(ctx context.Context) ([]string, error) {
	out, err := c.output(ctx, "tag", "--list", "--sort=-v:refname")
	if err != nil {
		return nil, fmt.Errorf("git tag --list failed: %w", err)
	}

	var tags []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// ResolveTarget returns the commit hash a tag points at, peeling annotated tags
func (c *ShellClient) ResolveTarget(ctx context.Context, tag string) (string, error) {
	out, err := c.output(ctx, "rev-parse", "--verify", "--quiet", "refs/tags/"+tag+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed for tag %q: %w", tag, err)
	}
	return strings.TrimSpace(out), nil
}

// CreateTag creates a new tag; git refuses when the tag already exists
func (c *ShellClient) CreateTag(ctx context.Context, name, target string) error {
	args := append([]string{"tag"}, c.annotateArgs()...)
	args = append(args, name, target)
	if err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("git tag %s failed: %w", name, err)
	}
	return nil
}

// ForceRetag moves an existing tag (or creates it) at target
func (c *ShellClient) ForceRetag(ctx context.Context, name, target string) error {
	args := append([]string{"tag", "--force"}, c.annotateArgs()...)
	args = append(args, name, target)
	if err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("git tag --force %s failed: %w", name, err)
	}
	return nil
}

// Publish pushes a single tag ref to the configured remote
func (c *ShellClient) Publish(ctx context.Context, tag string, force bool) error {
	args := []string{"push"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, c.opts.Remote, "refs/tags/"+tag)

	if err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("git push %s failed: %w", tag, err)
	}
	return nil
}

// FetchTags refreshes local tags from the remote, letting moved remote tags win
func (c *ShellClient) FetchTags(ctx context.Context) error {
	if err := c.run(ctx, "fetch", "--tags", "--force", c.opts.Remote); err != nil {
		return fmt.Errorf("git fetch --tags failed: %w", err)
	}
	return nil
}

func (c *ShellClient) annotateArgs() []string {
	if !c.opts.Annotate {
		return nil
	}
	return []string{"--annotate", "--message", c.opts.Message}
}

func (c *ShellClient) command(ctx context.Context, args ...string) (*exec.Cmd, error) {
	full := append([]string{"-C", c.repoDir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	if err := c.configureAuth(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// configureAuth sets up authentication for git operations
func (c *ShellClient) configureAuth(cmd *exec.Cmd) error {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	url := c.opts.RemoteURL

	// SSH authentication
	if c.opts.SSHKeyFile != "" && (strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")) {
		// The path is shell-quoted to prevent injection via crafted filenames.
		sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=accept-new -F /dev/null", shellQuote(c.opts.SSHKeyFile))
		cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND="+sshCmd)
		return nil
	}

	// HTTPS authentication with token
	if c.opts.HTTPSTokenFile != "" && strings.HasPrefix(url, "https://") {
		token, err := os.ReadFile(c.opts.HTTPSTokenFile)
		if err != nil {
			return fmt.Errorf("failed to read HTTPS token file: %w", err)
		}

		// The token travels in the environment and a credential helper echoes it,
		// so it never appears on a command line.
		cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")
		cmd.Env = append(cmd.Env, "VTAGSYNC_GIT_TOKEN="+strings.TrimSpace(string(token)))
		cmd.Args = insertGitFlags(cmd.Args,
			"-c", `credential.helper=!f() { echo "username=x-access-token"; echo "password=$VTAGSYNC_GIT_TOKEN"; }; f`,
		)
	}

	return nil
}

// insertGitFlags inserts flags immediately after the "git" command name,
// before the subcommand (e.g. "push", "fetch").
func insertGitFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	result := make([]string, 0, len(args)+len(flags))
	result = append(result, args[0])
	result = append(result, flags...)
	result = append(result, args[1:]...)
	return result
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// run executes a git command and returns an error with its output on failure
func (c *ShellClient) run(ctx context.Context, args ...string) error {
	cmd, err := c.command(ctx, args...)
	if err != nil {
		return err
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// output executes a git command and returns its stdout
func (c *ShellClient) output(ctx context.Context, args ...string) (string, error) {
	cmd, err := c.command(ctx, args...)
	if err != nil {
		return "", err
	}
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
