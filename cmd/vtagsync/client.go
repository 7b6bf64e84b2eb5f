package main

import (
	"fmt"

	"github.com/schaermu/vtagsync/internal/config"
	"github.com/schaermu/vtagsync/internal/git"
	"github.com/schaermu/vtagsync/internal/github"
)

// newClient builds the tag collaborator selected by cfg.Backend
func newClient(cfg *config.Config) (git.Client, error) {
	switch cfg.Backend {
	case config.BackendGit:
		return git.NewShellClient(cfg.Repo.Path, git.ShellOptions{
			Remote:         cfg.Repo.Remote,
			Annotate:       cfg.Tags.Annotate,
			Message:        cfg.Tags.Message,
			RemoteURL:      cfg.Repo.URL,
			SSHKeyFile:     cfg.Auth.SSHKeyFile,
			HTTPSTokenFile: cfg.Auth.HTTPSTokenFile,
		}), nil
	case config.BackendGitHub:
		owner, repo, err := github.ParseRepo(cfg.Repo.GitHub)
		if err != nil {
			return nil, err
		}
		token, err := cfg.GitHubToken()
		if err != nil {
			return nil, err
		}
		return github.NewTokenClient(token, owner, repo), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}
