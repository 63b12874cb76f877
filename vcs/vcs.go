// Package vcs fetches the source of a run and integrates a successful run back into the
// repository as a pull request.
package vcs

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBase is the branch pull requests target when none is configured.
const DefaultBase = "develop"

// Repository locates a hosted repository.
type Repository struct {
	Owner string
	Name  string
}

// ParseRepository parses an "owner/name" locator.
func ParseRepository(s string) (Repository, error) {
	owner, name, ok := strings.Cut(strings.TrimSuffix(s, ".git"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("invalid repository %q: want owner/name", s)
	}

	return Repository{Owner: owner, Name: name}, nil
}

// String returns the "owner/name" form.
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// BranchName is the branch a run is integrated from. It depends only on the run id.
func BranchName(runID string) string {
	return "pr-" + runID
}

// PullRequest describes the integration of one run.
type PullRequest struct {
	// Repository is the repository the run was fetched from.
	Repository Repository
	// Org owns the head branch.
	Org string
	// Base is the target branch. Empty means DefaultBase.
	Base string
	// Commit is the fetched commit the branch is created at.
	Commit string
	// Committer is the identity that requested the run.
	Committer string
	RunID     string
}

// Title returns the pull request title.
func (p PullRequest) Title() string {
	return "Pull submitted by beamline for RequestID:" + p.RunID
}

// Body returns the pull request body.
func (p PullRequest) Body() string {
	return fmt.Sprintf("All release stages passed for run %s.\n\nRequested by: %s\nCommit: %s\n",
		p.RunID, p.Committer, p.Commit)
}

// PullRequestResult identifies the opened pull request.
type PullRequestResult struct {
	Number int
	URL    string
	Branch string
}

// Integrator opens the pull request of a successful run.
type Integrator interface {
	OpenPullRequest(ctx context.Context, pr PullRequest) (*PullRequestResult, error)
}
