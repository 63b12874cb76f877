package vcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v72/github"
	"golang.org/x/oauth2"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

// NewGitHubClient returns a GitHub client authenticated with token. An empty token returns an
// unauthenticated client.
func NewGitHubClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}

	return github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
}

// GitHubIntegrator opens pull requests on GitHub.
type GitHubIntegrator struct {
	client *github.Client
	lggr   logger.Logger
}

var _ Integrator = (*GitHubIntegrator)(nil)

// NewGitHubIntegrator creates a GitHubIntegrator.
func NewGitHubIntegrator(client *github.Client, lggr logger.Logger) *GitHubIntegrator {
	return &GitHubIntegrator{client: client, lggr: lggr}
}

// OpenPullRequest creates the run branch at the fetched commit in the org's copy of the
// repository and opens a pull request from it into the base branch.
func (g *GitHubIntegrator) OpenPullRequest(ctx context.Context, pr PullRequest) (*PullRequestResult, error) {
	if pr.RunID == "" {
		return nil, errors.New("run id is required")
	}
	if pr.Commit == "" {
		return nil, errors.New("commit is required")
	}

	org := pr.Org
	if org == "" {
		org = pr.Repository.Owner
	}
	base := pr.Base
	if base == "" {
		base = DefaultBase
	}
	branch := BranchName(pr.RunID)

	_, _, err := g.client.Git.CreateRef(ctx, org, pr.Repository.Name, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.Ptr(pr.Commit)},
	})
	if err != nil {
		var ghErr *github.ErrorResponse
		if !errors.As(err, &ghErr) || ghErr.Response == nil || ghErr.Response.StatusCode != http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("failed to create branch %s in %s/%s: %w", branch, org, pr.Repository.Name, err)
		}
		// 422 means the branch already exists, which happens when a run is re-invoked.
		g.lggr.Warnw("Branch already exists", "branch", branch, "repository", pr.Repository.String())
	}

	created, _, err := g.client.PullRequests.Create(ctx, pr.Repository.Owner, pr.Repository.Name, &github.NewPullRequest{
		Title: github.Ptr(pr.Title()),
		Head:  github.Ptr(org + ":" + branch),
		Base:  github.Ptr(base),
		Body:  github.Ptr(pr.Body()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pull request from %s:%s into %s: %w", org, branch, base, err)
	}

	res := &PullRequestResult{
		Number: created.GetNumber(),
		URL:    created.GetHTMLURL(),
		Branch: branch,
	}
	g.lggr.Infow("Opened pull request", "number", res.Number, "url", res.URL, "runID", pr.RunID)

	return res, nil
}
