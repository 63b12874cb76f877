package vcs

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

// Cloner fetches a repository with the git binary.
type Cloner struct {
	// BaseURL is the git host, e.g. https://github.com.
	BaseURL string
	// Token, when set, is sent as basic auth password for HTTPS remotes.
	Token string
	// Branch to check out. Empty means the remote default.
	Branch string

	lggr logger.Logger
}

// NewCloner creates a Cloner.
func NewCloner(baseURL, token string, lggr logger.Logger) *Cloner {
	return &Cloner{BaseURL: baseURL, Token: token, lggr: lggr}
}

// RemoteURL returns the clone URL of repo. Credentials are not included.
func (c *Cloner) RemoteURL(repo Repository) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + repo.String() + ".git"
}

// Clone clones repo into dir and returns the checked out commit.
func (c *Cloner) Clone(ctx context.Context, repo Repository, dir string) (string, error) {
	remote := c.RemoteURL(repo)

	args := []string{"clone", "--depth", "1"}
	if c.Branch != "" {
		args = append(args, "--branch", c.Branch)
	}
	args = append(args, c.authenticated(remote), dir)

	c.lggr.Infow("Cloning repository", "remote", remote, "dir", dir)
	if _, err := c.git(ctx, "", args...); err != nil {
		return "", fmt.Errorf("failed to clone %s: %w", remote, err)
	}

	sha, err := c.git(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD of %s: %w", remote, err)
	}

	return sha, nil
}

func (c *Cloner) authenticated(remote string) string {
	if c.Token == "" {
		return remote
	}

	u, err := url.Parse(remote)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return remote
	}
	u.User = url.UserPassword("x-access-token", c.Token)

	return u.String()
}

func (c *Cloner) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if c.Token != "" {
			msg = strings.ReplaceAll(msg, c.Token, "***")
		}

		return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
	}

	return strings.TrimSpace(stdout.String()), nil
}
