package vcs

import (
	"context"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

// LogIntegrator logs the pull request it would open instead of opening it. Dry runs use it.
type LogIntegrator struct {
	lggr logger.Logger
}

var _ Integrator = (*LogIntegrator)(nil)

// NewLogIntegrator creates a LogIntegrator.
func NewLogIntegrator(lggr logger.Logger) *LogIntegrator {
	return &LogIntegrator{lggr: lggr}
}

// OpenPullRequest logs pr and reports the branch it would have been opened from.
func (l *LogIntegrator) OpenPullRequest(_ context.Context, pr PullRequest) (*PullRequestResult, error) {
	base := pr.Base
	if base == "" {
		base = DefaultBase
	}
	branch := BranchName(pr.RunID)

	l.lggr.Infow("Skipping pull request", "repository", pr.Repository.String(), "org", pr.Org,
		"branch", branch, "base", base, "commit", pr.Commit, "title", pr.Title())

	return &PullRequestResult{Branch: branch}, nil
}
