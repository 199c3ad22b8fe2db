package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Transport failure sentinels. Callers distinguish a timed-out command
// from a non-zero exit with errors.Is.
var (
	ErrTimeout = errors.New("git command timed out")
	ErrExec    = errors.New("git command failed")
)

// Runner executes git commands against one repository. It is the only
// seam between the engine and a real process; tests inject a fake
// returning canned transcripts.
type Runner interface {
	// Run executes git with the given arguments and returns stdout.
	Run(ctx context.Context, args ...string) (string, error)
	// RunInput is Run with data piped to stdin (used for patch-id).
	RunInput(ctx context.Context, input string, args ...string) (string, error)
}

// ExecRunner runs git as a subprocess with a per-call timeout.
type ExecRunner struct {
	repoPath string
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewExecRunner creates a runner for the repository at repoPath.
func NewExecRunner(repoPath string, timeout time.Duration, logger *logrus.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExecRunner{repoPath: repoPath, timeout: timeout, logger: logger}
}

// Run executes a git command and returns stdout.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.RunInput(ctx, "", args...)
}

// RunInput executes a git command with stdin and returns stdout.
func (r *ExecRunner) RunInput(ctx context.Context, input string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "git", args...)
	cmd.Dir = r.repoPath
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	start := time.Now()
	output, err := cmd.Output()
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: git %s after %s", ErrTimeout, args[0], r.timeout)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			return "", fmt.Errorf("%w: git %s: %s", ErrExec, strings.Join(args, " "), stderr)
		}
		return "", fmt.Errorf("%w: git %s: %v", ErrExec, args[0], err)
	}

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"args":     args[0],
			"duration": time.Since(start).String(),
		}).Debug("git command completed")
	}
	return string(output), nil
}
