package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/schaermu/vtagsync/internal/github"
)

// Backend selects the implementation of the tag collaborator
type Backend string

const (
	// BackendGit shells out to git in a local checkout
	BackendGit Backend = "git"
	// BackendGitHub talks to the GitHub REST API
	BackendGitHub Backend = "github"
)

// Config represents the complete vtagsync configuration
type Config struct {
	Backend Backend     `yaml:"backend"`
	Publish bool        `yaml:"publish"`
	Repo    RepoConfig  `yaml:"repo"`
	Tags    TagsConfig  `yaml:"tags"`
	Auth    AuthConfig  `yaml:"auth"`
	Serve   ServeConfig `yaml:"serve"`
}

// RepoConfig locates the repository whose tags are reconciled
type RepoConfig struct {
	// Path is the local checkout used by the git backend
	Path string `yaml:"path"`
	// Remote is the git remote tags are pushed to
	Remote string `yaml:"remote"`
	// URL is the remote URL; it decides which auth method applies
	URL string `yaml:"url"`
	// GitHub is "owner/repo" or a GitHub URL for the github backend
	GitHub string `yaml:"github"`
}

// TagsConfig controls how floating tags are written
type TagsConfig struct {
	Annotate bool   `yaml:"annotate"`
	Message  string `yaml:"message"`
}

// AuthConfig configures authentication
type AuthConfig struct {
	SSHKeyFile      string `yaml:"ssh_key_file"`
	HTTPSTokenFile  string `yaml:"https_token_file"`
	GitHubTokenFile string `yaml:"github_token_file"`
}

// ServeConfig configures the webhook daemon
type ServeConfig struct {
	ListenAddr              string `yaml:"listen_addr"`
	GitHubWebhookSecretFile string `yaml:"github_webhook_secret_file"`
	MetricsPath             string `yaml:"metrics_path"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Backend: BackendGit,
		Publish: true,
		Repo: RepoConfig{
			Path:   ".",
			Remote: "origin",
		},
		Tags: TagsConfig{
			Annotate: true,
		},
		Serve: ServeConfig{
			ListenAddr:  "127.0.0.1:8787",
			MetricsPath: "/metrics",
		},
	}
}

// Load reads and parses the configuration file on top of Default
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MergeFlags applies command line overrides. Only flags the user set explicitly win.
func MergeFlags(cfg *Config, flags *pflag.FlagSet) *Config {
	if flags.Changed("repo") {
		if v, err := flags.GetString("repo"); err == nil {
			cfg.Repo.Path = v
		}
	}
	if flags.Changed("remote") {
		if v, err := flags.GetString("remote"); err == nil {
			cfg.Repo.Remote = v
		}
	}
	if flags.Changed("backend") {
		if v, err := flags.GetString("backend"); err == nil {
			cfg.Backend = Backend(v)
		}
	}
	if flags.Changed("github-repo") {
		if v, err := flags.GetString("github-repo"); err == nil {
			cfg.Repo.GitHub = v
		}
	}
	if flags.Changed("no-push") {
		if v, err := flags.GetBool("no-push"); err == nil {
			cfg.Publish = !v
		}
	}
	if flags.Changed("listen") {
		if v, err := flags.GetString("listen"); err == nil {
			cfg.Serve.ListenAddr = v
		}
	}
	return cfg
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Repo.Path = os.ExpandEnv(c.Repo.Path)
	c.Repo.Remote = os.ExpandEnv(c.Repo.Remote)
	c.Repo.URL = os.ExpandEnv(c.Repo.URL)
	c.Repo.GitHub = os.ExpandEnv(c.Repo.GitHub)
	c.Tags.Message = os.ExpandEnv(c.Tags.Message)
	c.Auth.SSHKeyFile = os.ExpandEnv(c.Auth.SSHKeyFile)
	c.Auth.HTTPSTokenFile = os.ExpandEnv(c.Auth.HTTPSTokenFile)
	c.Auth.GitHubTokenFile = os.ExpandEnv(c.Auth.GitHubTokenFile)
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.GitHubWebhookSecretFile = os.ExpandEnv(c.Serve.GitHubWebhookSecretFile)
}

// applyDefaults fills fields a config file explicitly blanked.
func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendGit
	}
	if c.Repo.Remote == "" {
		c.Repo.Remote = "origin"
	}
	if c.Repo.Path == "" {
		c.Repo.Path = "."
	}
	if c.Serve.MetricsPath == "" {
		c.Serve.MetricsPath = "/metrics"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGit:
		if c.Repo.Path == "" {
			return fmt.Errorf("repo.path is required for the git backend")
		}
	case BackendGitHub:
		// Same forms the github client accepts: owner/repo or a GitHub URL
		if _, _, err := github.ParseRepo(c.Repo.GitHub); err != nil {
			return fmt.Errorf("repo.github must be owner/repo or a GitHub URL for the github backend: %w", err)
		}
	default:
		return fmt.Errorf("invalid backend: %s (must be git or github)", c.Backend)
	}

	// Validate auth: only one git auth method may be configured
	if c.Auth.SSHKeyFile != "" && c.Auth.HTTPSTokenFile != "" {
		return fmt.Errorf("auth: only one of ssh_key_file or https_token_file may be set")
	}

	// Validate auth: when auth is configured, the URL scheme must match
	if c.Auth.SSHKeyFile != "" && !c.IsSSH() {
		return fmt.Errorf("auth.ssh_key_file is set but repo.url does not use an SSH scheme (git@ or ssh://)")
	}
	if c.Auth.HTTPSTokenFile != "" && !c.IsHTTPS() {
		return fmt.Errorf("auth.https_token_file is set but repo.url does not use HTTPS scheme")
	}

	return nil
}

// ValidateServe checks the settings the webhook daemon needs on top of Validate
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Serve.ListenAddr == "" {
		return fmt.Errorf("serve.listen_addr is required")
	}
	if c.Serve.GitHubWebhookSecretFile == "" {
		return fmt.Errorf("serve.github_webhook_secret_file is required")
	}
	if !strings.HasPrefix(c.Serve.MetricsPath, "/") {
		return fmt.Errorf("serve.metrics_path must start with /: %s", c.Serve.MetricsPath)
	}
	if c.Serve.MetricsPath == "/" || c.Serve.MetricsPath == "/healthz" {
		return fmt.Errorf("serve.metrics_path collides with a built-in route: %s", c.Serve.MetricsPath)
	}
	return nil
}

// GitHubToken returns the API token from auth.github_token_file, falling back to $GITHUB_TOKEN
func (c *Config) GitHubToken() (string, error) {
	if c.Auth.GitHubTokenFile == "" {
		return os.Getenv("GITHUB_TOKEN"), nil
	}
	data, err := os.ReadFile(c.Auth.GitHubTokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read GitHub token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// AuthMethod returns a description of the configured auth method
func (c *Config) AuthMethod() string {
	switch {
	case c.Backend == BackendGitHub:
		return "github-token"
	case c.Auth.SSHKeyFile != "":
		return "ssh"
	case c.Auth.HTTPSTokenFile != "":
		return "https"
	default:
		return "none"
	}
}

// IsHTTPS returns true if the repo URL uses HTTPS
func (c *Config) IsHTTPS() bool {
	return strings.HasPrefix(c.Repo.URL, "https://")
}

// IsSSH returns true if the repo URL uses SSH
func (c *Config) IsSSH() bool {
	return strings.HasPrefix(c.Repo.URL, "git@") || strings.HasPrefix(c.Repo.URL, "ssh://")
}
