// Package github supplies pull-request evidence for branch merge
// verdicts. The API is advisory: any failure degrades to "no evidence"
// instead of sinking the run.
package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Client wraps the GitHub API with rate limiting.
type Client struct {
	api     *gh.Client
	owner   string
	repo    string
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewClient creates a GitHub client for one repository. An empty token
// yields unauthenticated access with its much lower rate limits.
func NewClient(ctx context.Context, owner, repo, token string, rps float64, logger *logrus.Logger) *Client {
	httpClient := oauth2.NewClient(ctx, nil)
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		api:     gh.NewClient(httpClient),
		owner:   owner,
		repo:    repo,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// BranchHasPullRequest reports whether any pull request (open, merged,
// or closed) used the branch as its head.
func (c *Client) BranchHasPullRequest(ctx context.Context, branch string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	// head filter wants "owner:branch"; strip remote-tracking prefixes
	short := branch
	if idx := strings.LastIndexByte(short, '/'); idx >= 0 && (strings.HasPrefix(short, "origin/") || strings.HasPrefix(short, "upstream/")) {
		short = short[idx+1:]
	}

	prs, _, err := c.api.PullRequests.List(ctx, c.owner, c.repo, &gh.PullRequestListOptions{
		State:       "all",
		Head:        c.owner + ":" + short,
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return false, fmt.Errorf("list pull requests for %s: %w", branch, err)
	}
	return len(prs) > 0, nil
}

// AnnotateBranches marks HasPullRequest on each status where the API
// finds one. Lookup failures are logged and skipped.
func (c *Client) AnnotateBranches(ctx context.Context, annotate func(branch string, has bool), branches []string) {
	for _, b := range branches {
		has, err := c.BranchHasPullRequest(ctx, b)
		if err != nil {
			if c.logger != nil {
				c.logger.WithFields(logrus.Fields{"branch": b, "error": err}).Warn("pull request lookup failed")
			}
			continue
		}
		if has {
			annotate(b, true)
		}
	}
}
