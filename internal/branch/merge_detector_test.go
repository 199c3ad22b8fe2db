package branch

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devstats/devstats-go/internal/cache"
	"github.com/devstats/devstats-go/internal/git"
)

// fakeRunner serves canned git transcripts. Run dispatches on the
// joined argument list; RunInput additionally dispatches on stdin so
// patch-id lookups can depend on the piped diff.
type fakeRunner struct {
	responses      map[string]string
	inputResponses map[string]string
	errors         map[string]error
	calls          []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		responses:      map[string]string{},
		inputResponses: map[string]string{},
		errors:         map[string]error{},
	}
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errors[key]; ok {
		return "", err
	}
	if out, ok := f.responses[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("git %s: exit status 128", args[0])
}

func (f *fakeRunner) RunInput(ctx context.Context, input string, args ...string) (string, error) {
	if out, ok := f.inputResponses[input]; ok {
		return out, nil
	}
	return f.Run(ctx, args...)
}

func (f *fakeRunner) on(out string, args ...string) {
	f.responses[strings.Join(args, " ")] = out
}

func (f *fakeRunner) onInput(input, out string) {
	f.inputResponses[input] = out
}

func (f *fakeRunner) failWith(err error, args ...string) {
	f.errors[strings.Join(args, " ")] = err
}

const (
	sha1 = "1111111111111111111111111111111111111111"
	sha2 = "2222222222222222222222222222222222222222"
	tree = "tttttttttttttttttttttttttttttttttttttttt"
	base = "9999999999999999999999999999999999999999"
)

func notAncestor(f *fakeRunner, branch, target string) {
	f.failWith(fmt.Errorf("git merge-base: exit status 1"), "merge-base", "--is-ancestor", branch, target)
}

func newTestDetector(f *fakeRunner) *Detector {
	return NewDetector(git.NewRepo(f), cache.NewRunCache(), DefaultDetectorConfig(), nil)
}

// stubPatchID wires the diff-tree / patch-id pair so sha hashes to id.
func stubPatchID(f *fakeRunner, sha, id string) {
	diff := "diff for " + id
	f.on(diff, "diff-tree", "-p", sha)
	f.onInput(diff, id+" "+sha)
}

func TestDetectExactMergeViaAncestry(t *testing.T) {
	f := newFakeRunner()
	f.on("", "merge-base", "--is-ancestor", "feature", "main")
	f.on(sha1+"\n", "rev-list", "feature", "^main")
	f.on(base, "merge-base", "feature", "main")
	f.failWith(fmt.Errorf("git merge-tree: fatal"), "merge-tree", "--write-tree", base, "feature")
	f.on("", "rev-list", "main", "^feature")

	status, err := newTestDetector(f).Detect(context.Background(), "feature", "main", time.Now())
	require.NoError(t, err)
	assert.True(t, status.ExactMerged)
	assert.True(t, status.IsMerged())
	assert.Equal(t, 1.0, status.BestConfidence())
}

func TestDetectExactWhenNoUniqueCommits(t *testing.T) {
	f := newFakeRunner()
	notAncestor(f, "feature", "main")
	f.on("", "rev-list", "feature", "^main")
	f.failWith(fmt.Errorf("git merge-base: fatal"), "merge-base", "feature", "main")

	status, err := newTestDetector(f).Detect(context.Background(), "feature", "main", time.Now())
	require.NoError(t, err)
	assert.True(t, status.ExactMerged)
}

func TestDetectSquashViaTreeMatch(t *testing.T) {
	lastActivity := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	matchTime := lastActivity.Add(2 * time.Hour)

	f := newFakeRunner()
	notAncestor(f, "feature", "main")
	f.on(sha1+"\n"+sha2+"\n", "rev-list", "feature", "^main")
	f.on(base, "merge-base", "feature", "main")
	f.on(tree+"\n", "merge-tree", "--write-tree", base, "feature")
	f.on(
		"aaaa000000000000000000000000000000000000\x00othertree\x00"+matchTime.Add(time.Hour).Format(time.RFC3339)+"\n"+
			"bbbb000000000000000000000000000000000000\x00"+tree+"\x00"+matchTime.Format(time.RFC3339)+"\n",
		"log", "-n50", "--format=%H%x00%T%x00%cI", "main",
	)
	f.on("", "rev-list", "main", "^feature")

	status, err := newTestDetector(f).Detect(context.Background(), "feature", "main", lastActivity)
	require.NoError(t, err)
	assert.False(t, status.ExactMerged)
	assert.True(t, status.SquashMerged)
	assert.InDelta(t, 1.0, status.SquashConfidence, 0.01)
	assert.Equal(t, "squash", string(status.MergeType()))
}

func TestSquashConfidenceDecaysWithDistance(t *testing.T) {
	lastActivity := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	near := squashConfidence(lastActivity.Add(24*time.Hour), lastActivity)
	far := squashConfidence(lastActivity.Add(150*24*time.Hour), lastActivity)
	assert.Greater(t, near, far)
	assert.GreaterOrEqual(t, far, 0.5)
}

func TestDetectRebaseViaPatchIDs(t *testing.T) {
	f := newFakeRunner()
	notAncestor(f, "feature", "main")
	f.on(sha1+"\n"+sha2+"\n", "rev-list", "feature", "^main")
	f.failWith(fmt.Errorf("git merge-base: fatal"), "merge-base", "feature", "main")

	rebased1 := "3333333333333333333333333333333333333333"
	rebased2 := "4444444444444444444444444444444444444444"
	f.on(rebased1+"\n"+rebased2+"\n", "rev-list", "main", "^feature")

	stubPatchID(f, sha1, "pid-a")
	stubPatchID(f, sha2, "pid-b")
	stubPatchID(f, rebased1, "pid-a")
	stubPatchID(f, rebased2, "pid-b")

	status, err := newTestDetector(f).Detect(context.Background(), "feature", "main", time.Now())
	require.NoError(t, err)
	assert.True(t, status.RebaseMerged)
	assert.Equal(t, 1.0, status.RebaseConfidence)
	assert.Equal(t, "rebase", string(status.MergeType()))
}

func TestDetectIsIdempotentOnUnchangedHistory(t *testing.T) {
	f := newFakeRunner()
	notAncestor(f, "feature", "main")
	f.on(sha1+"\n"+sha2+"\n", "rev-list", "feature", "^main")
	f.failWith(fmt.Errorf("git merge-base: fatal"), "merge-base", "feature", "main")

	rebased1 := "3333333333333333333333333333333333333333"
	rebased2 := "4444444444444444444444444444444444444444"
	f.on(rebased1+"\n"+rebased2+"\n", "rev-list", "main", "^feature")

	stubPatchID(f, sha1, "pid-a")
	stubPatchID(f, sha2, "pid-b")
	stubPatchID(f, rebased1, "pid-a")
	stubPatchID(f, rebased2, "pid-b")

	d := newTestDetector(f)
	lastActivity := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := d.Detect(context.Background(), "feature", "main", lastActivity)
	require.NoError(t, err)
	// second pass reuses memoized patch ids; the verdict must not move
	second, err := d.Detect(context.Background(), "feature", "main", lastActivity)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRebasePartialMatchBelowFloorIsNotMerged(t *testing.T) {
	f := newFakeRunner()
	notAncestor(f, "feature", "main")
	f.on(sha1+"\n"+sha2+"\n", "rev-list", "feature", "^main")
	f.failWith(fmt.Errorf("git merge-base: fatal"), "merge-base", "feature", "main")

	rebased1 := "3333333333333333333333333333333333333333"
	f.on(rebased1+"\n", "rev-list", "main", "^feature")

	// only one of two branch commits matches: confidence 0.5 < 0.6
	stubPatchID(f, sha1, "pid-a")
	stubPatchID(f, sha2, "pid-b")
	stubPatchID(f, rebased1, "pid-a")

	status, err := newTestDetector(f).Detect(context.Background(), "feature", "main", time.Now())
	require.NoError(t, err)
	assert.False(t, status.RebaseMerged)
	assert.InDelta(t, 0.5, status.RebaseConfidence, 1e-9)
	assert.False(t, status.IsMerged())
}
