package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Repo exposes the raw git queries the engine consumes. All methods are
// read-only; the repository is never mutated.
type Repo struct {
	run Runner
}

// NewRepo wraps a Runner with typed query helpers.
func NewRepo(run Runner) *Repo {
	return &Repo{run: run}
}

// Runner returns the underlying transport.
func (r *Repo) Runner() Runner { return r.run }

// BranchRef is one entry from for-each-ref.
type BranchRef struct {
	Name     string
	SHA      string
	IsRemote bool
}

// CommitMeta is lightweight commit metadata used by merge detection.
type CommitMeta struct {
	SHA         string
	TreeSHA     string
	CommittedAt time.Time
}

// LogOptions select which slice of history a log read covers.
type LogOptions struct {
	Ref         string
	MaxCount    int // 0 = unlimited
	Since       string
	Until       string
	Author      string
	FirstParent bool
}

// Log returns raw null-delimited log output for the ingestor to parse.
// The format keeps record and field separators outside the printable
// range so free-form commit messages cannot collide with them.
func (r *Repo) Log(ctx context.Context, opts LogOptions) (string, error) {
	args := []string{"log", "--format=" + LogFormat, "--numstat"}
	if opts.MaxCount > 0 {
		args = append(args, fmt.Sprintf("-n%d", opts.MaxCount))
	}
	if opts.Since != "" {
		args = append(args, "--since="+opts.Since)
	}
	if opts.Until != "" {
		args = append(args, "--until="+opts.Until)
	}
	if opts.Author != "" {
		args = append(args, "--author="+opts.Author)
	}
	if opts.FirstParent {
		args = append(args, "--first-parent")
	}
	if opts.Ref != "" {
		args = append(args, opts.Ref)
	}
	return r.run.Run(ctx, args...)
}

// HeadSHA returns the commit HEAD resolves to.
func (r *Repo) HeadSHA(ctx context.Context) (string, error) {
	out, err := r.run.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name, or "HEAD" when detached.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(out)
	if name == "" {
		name = "HEAD"
	}
	return name, nil
}

// ListBranches returns local and remote-tracking branches with tip SHAs.
func (r *Repo) ListBranches(ctx context.Context, includeRemote bool) ([]BranchRef, error) {
	refs := []string{"refs/heads/"}
	if includeRemote {
		refs = append(refs, "refs/remotes/")
	}
	args := append([]string{"for-each-ref", "--format=%(refname:short) %(objectname)"}, refs...)
	out, err := r.run.Run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var result []BranchRef
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		name := parts[0]
		if strings.HasSuffix(name, "/HEAD") {
			continue
		}
		result = append(result, BranchRef{
			Name:     name,
			SHA:      strings.TrimSpace(parts[1]),
			IsRemote: strings.Contains(name, "/") && includeRemote && isRemoteName(name),
		})
	}
	return result, nil
}

func isRemoteName(name string) bool {
	// remote-tracking refs shorten to "origin/branch"
	idx := strings.IndexByte(name, '/')
	return idx > 0 && (strings.HasPrefix(name, "origin/") || strings.HasPrefix(name, "upstream/"))
}

// TipInfo returns author identity and timestamp for a commit.
func (r *Repo) TipInfo(ctx context.Context, sha string) (name, email string, at time.Time, err error) {
	out, err := r.run.Run(ctx, "log", "-1", "--format=%an%x00%ae%x00%aI", sha)
	if err != nil {
		return "", "", time.Time{}, err
	}
	parts := strings.Split(strings.TrimSpace(out), "\x00")
	if len(parts) < 3 {
		return "", "", time.Time{}, fmt.Errorf("%w: unexpected tip info for %s", ErrExec, sha)
	}
	at, perr := time.Parse(time.RFC3339, parts[2])
	if perr != nil {
		at = time.Unix(0, 0).UTC()
	}
	return parts[0], parts[1], at, nil
}

// AheadBehind computes commits ahead of and behind target.
func (r *Repo) AheadBehind(ctx context.Context, branch, target string) (ahead, behind int, err error) {
	out, err := r.run.Run(ctx, "rev-list", "--left-right", "--count", branch+"..."+target)
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Fields(strings.TrimSpace(out))
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected rev-list count output", ErrExec)
	}
	ahead, _ = strconv.Atoi(parts[0])
	behind, _ = strconv.Atoi(parts[1])
	return ahead, behind, nil
}

// IsAncestor reports whether branch's tip is reachable from target.
func (r *Repo) IsAncestor(ctx context.Context, branch, target string) (bool, error) {
	_, err := r.run.Run(ctx, "merge-base", "--is-ancestor", branch, target)
	if err == nil {
		return true, nil
	}
	// exit status 1 means "not an ancestor", which is an answer, not a failure
	if strings.Contains(err.Error(), "merge-base") && !strings.Contains(err.Error(), "fatal") {
		return false, nil
	}
	return false, err
}

// MergeBase returns the best common ancestor of two refs.
func (r *Repo) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := r.run.Run(ctx, "merge-base", a, b)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// MergeTreeSHA returns the tree produced by replaying branch onto base.
func (r *Repo) MergeTreeSHA(ctx context.Context, base, branch string) (string, error) {
	out, err := r.run.Run(ctx, "merge-tree", "--write-tree", base, branch)
	if err != nil {
		return "", err
	}
	// first line is the resulting tree OID
	line := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	return line, nil
}

// RecentCommits returns tree SHAs and timestamps for the last n commits
// reachable from ref, newest first.
func (r *Repo) RecentCommits(ctx context.Context, ref string, n int) ([]CommitMeta, error) {
	out, err := r.run.Run(ctx, "log", fmt.Sprintf("-n%d", n), "--format=%H%x00%T%x00%cI", ref)
	if err != nil {
		return nil, err
	}
	var metas []CommitMeta
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\x00")
		if len(parts) != 3 {
			continue
		}
		at, perr := time.Parse(time.RFC3339, parts[2])
		if perr != nil {
			continue
		}
		metas = append(metas, CommitMeta{SHA: parts[0], TreeSHA: parts[1], CommittedAt: at})
	}
	return metas, nil
}

// UniqueCommits lists commits reachable from ref but not from exclude.
func (r *Repo) UniqueCommits(ctx context.Context, ref, exclude string) ([]string, error) {
	out, err := r.run.Run(ctx, "rev-list", ref, "^"+exclude)
	if err != nil {
		return nil, err
	}
	var shas []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			shas = append(shas, line)
		}
	}
	return shas, nil
}

// PatchID returns the stable content digest of a commit's net change,
// ignoring commit metadata. Identical logical changes produce the same
// digest even after a rebase rewrote the commit hash.
func (r *Repo) PatchID(ctx context.Context, sha string) (string, error) {
	patch, err := r.run.Run(ctx, "diff-tree", "-p", sha)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(patch) == "" {
		return "", nil
	}
	out, err := r.run.RunInput(ctx, patch, "patch-id", "--stable")
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// BlamePorcelain returns raw --line-porcelain output for a file at HEAD.
func (r *Repo) BlamePorcelain(ctx context.Context, path string, followRenames bool) (string, error) {
	args := []string{"blame", "--line-porcelain"}
	if followRenames {
		args = append(args, "-M", "-C")
	}
	args = append(args, "--", path)
	return r.run.Run(ctx, args...)
}

// ListFiles returns all paths tracked at HEAD.
func (r *Repo) ListFiles(ctx context.Context) ([]string, error) {
	out, err := r.run.Run(ctx, "ls-files")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// IsBinary reports whether git treats the file at HEAD as binary,
// using the numstat "-" convention.
func (r *Repo) IsBinary(ctx context.Context, path string) (bool, error) {
	out, err := r.run.Run(ctx, "diff-tree", "--numstat", "--root", "HEAD", "--", path)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[0] == "-" && fields[1] == "-" {
			return true, nil
		}
	}
	return false, nil
}

// Reflog returns raw reflog text for a ref; force-push evidence is
// derived from it by the pattern detectors, not here.
func (r *Repo) Reflog(ctx context.Context, ref string) (string, error) {
	return r.run.Run(ctx, "reflog", "show", "--format=%H %gs", ref)
}

// ShowPatch returns the unified diff text of a single commit.
func (r *Repo) ShowPatch(ctx context.Context, sha string) (string, error) {
	return r.run.Run(ctx, "show", "--format=", "--unified=0", sha)
}
