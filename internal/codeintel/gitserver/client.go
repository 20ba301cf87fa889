// Package gitserver provides the commit-graph discovery the Job Pipeline's
// update-tips job and FindClosestDump's traversal depend on.
package gitserver

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// Client resolves commit-graph facts for a repository checked out on local
// disk. The production deployment of this service points RepoDir at a
// gitserver-managed clone; this module talks to `git` directly rather than
// through gitserver's RPC protocol, which is outside this repository's
// scope.
type Client struct {
	// RepoDir maps a repository name to the local path of its git
	// checkout.
	RepoDir func(repository string) (string, error)
}

// New constructs a Client backed by repoDir.
func New(repoDir func(repository string) (string, error)) *Client {
	return &Client{RepoDir: repoDir}
}

// Head returns the commit at the tip of repository's default branch.
func (c *Client) Head(ctx context.Context, repository string) (string, error) {
	out, err := c.run(ctx, repository, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CommitGraph returns, for every commit reachable from any ref, the list of
// its parent commits.
func (c *Client) CommitGraph(ctx context.Context, repository string) (map[string][]string, error) {
	out, err := c.run(ctx, repository, "log", "--all", "--pretty=%H %P")
	if err != nil {
		return nil, err
	}
	return ParseCommitGraph(strings.Split(out, "\n")), nil
}

// ParseCommitGraph converts `git log --pretty=%H %P` output into a map from
// commit to parent commits. A commit with no parents maps to an empty,
// non-nil slice.
func ParseCommitGraph(lines []string) map[string][]string {
	graph := make(map[string][]string, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, " ")
		if len(parts) == 1 {
			graph[parts[0]] = []string{}
			continue
		}
		graph[parts[0]] = parts[1:]
	}

	return graph
}

func (c *Client) run(ctx context.Context, repository string, args ...string) (string, error) {
	dir, err := c.RepoDir(repository)
	if err != nil {
		return "", errors.Wrap(err, "RepoDir")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "git %s", strings.Join(args, " "))
	}

	return stdout.String(), nil
}
