// Package github implements the tag collaborator on top of the GitHub REST API.
// Mutations land on the remote directly, so publishing is a no-op.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v60/github"
)

// Client implements git.Client against a single GitHub repository
type Client struct {
	client *gh.Client
	owner  string
	repo   string
}

// NewClient wraps an authenticated go-github client for owner/repo
func NewClient(client *gh.Client, owner, repo string) *Client {
	return &Client{
		client: client,
		owner:  owner,
		repo:   repo,
	}
}

// NewTokenClient builds a client authenticating with a personal or app token
func NewTokenClient(token, owner, repo string) *Client {
	client := gh.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return NewClient(client, owner, repo)
}

// ListTags returns every tag name, following pagination
func (c *Client) ListTags(ctx context.Context) ([]string, error) {
	var names []string
	opts := &gh.ListOptions{PerPage: 100}

	for {
		tags, resp, err := c.client.Repositories.ListTags(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list tags for %s/%s: %w", c.owner, c.repo, err)
		}
		for _, t := range tags {
			names = append(names, t.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// ResolveTarget returns the commit a tag ref points at. Annotated tags are
// peeled through the tag object.
func (c *Client) ResolveTarget(ctx context.Context, tag string) (string, error) {
	ref, _, err := c.client.Git.GetRef(ctx, c.owner, c.repo, "tags/"+tag)
	if err != nil {
		return "", fmt.Errorf("get ref tags/%s in %s/%s: %w", tag, c.owner, c.repo, err)
	}

	obj := ref.GetObject()
	for obj.GetType() == "tag" {
		t, _, err := c.client.Git.GetTag(ctx, c.owner, c.repo, obj.GetSHA())
		if err != nil {
			return "", fmt.Errorf("get tag object %s in %s/%s: %w", obj.GetSHA(), c.owner, c.repo, err)
		}
		obj = t.GetObject()
	}
	return obj.GetSHA(), nil
}

// CreateTag creates a lightweight tag ref; GitHub rejects existing refs with 422
func (c *Client) CreateTag(ctx context.Context, name, target string) error {
	_, _, err := c.client.Git.CreateRef(ctx, c.owner, c.repo, &gh.Reference{
		Ref:    gh.String("refs/tags/" + name),
		Object: &gh.GitObject{SHA: gh.String(target)},
	})
	if err != nil {
		return fmt.Errorf("create ref tags/%s in %s/%s: %w", name, c.owner, c.repo, err)
	}
	return nil
}

// ForceRetag force-updates an existing tag ref, creating it when it is missing
func (c *Client) ForceRetag(ctx context.Context, name, target string) error {
	_, _, err := c.client.Git.UpdateRef(ctx, c.owner, c.repo, &gh.Reference{
		Ref:    gh.String("refs/tags/" + name),
		Object: &gh.GitObject{SHA: gh.String(target)},
	}, true)
	if isMissingRef(err) {
		return c.CreateTag(ctx, name, target)
	}
	if err != nil {
		return fmt.Errorf("update ref tags/%s in %s/%s: %w", name, c.owner, c.repo, err)
	}
	return nil
}

// Publish is a no-op: every mutation already happened on GitHub.
func (c *Client) Publish(context.Context, string, bool) error {
	return nil
}

// isMissingRef reports whether err is GitHub's 422 for updating a ref that does not exist
func isMissingRef(err error) bool {
	var errResp *gh.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Response == nil {
		return false
	}
	return errResp.Response.StatusCode == http.StatusUnprocessableEntity &&
		strings.EqualFold(strings.TrimSpace(errResp.Message), "Reference does not exist")
}

// ParseRepo accepts "owner/repo" or a GitHub URL and returns its parts
func ParseRepo(repoURL string) (owner, repo string, err error) {
	s := strings.TrimSpace(repoURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@github.com:")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, ".git")
	s = strings.TrimSuffix(s, "/")

	parts := strings.SplitN(s, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("cannot parse GitHub repo from %q", repoURL)
	}
	return parts[0], parts[1], nil
}
