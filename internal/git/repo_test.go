package git

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	responses map[string]string
	errors    map[string]error
	lastInput string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: map[string]string{}, errors: map[string]error{}}
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")
	if err, ok := f.errors[key]; ok {
		return "", err
	}
	if out, ok := f.responses[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("git %s: exit status 128", args[0])
}

func (f *fakeRunner) RunInput(ctx context.Context, input string, args ...string) (string, error) {
	f.lastInput = input
	return f.Run(ctx, args...)
}

func (f *fakeRunner) on(out string, args ...string) {
	f.responses[strings.Join(args, " ")] = out
}

func TestListBranchesSkipsSymbolicHead(t *testing.T) {
	f := newFakeRunner()
	f.on("main aaaa\norigin/HEAD bbbb\norigin/main bbbb\n",
		"for-each-ref", "--format=%(refname:short) %(objectname)", "refs/heads/", "refs/remotes/")

	refs, err := NewRepo(f).ListBranches(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "main", refs[0].Name)
	assert.False(t, refs[0].IsRemote)
	assert.Equal(t, "origin/main", refs[1].Name)
	assert.True(t, refs[1].IsRemote)
}

func TestAheadBehind(t *testing.T) {
	f := newFakeRunner()
	f.on("3\t7\n", "rev-list", "--left-right", "--count", "feature...main")

	ahead, behind, err := NewRepo(f).AheadBehind(context.Background(), "feature", "main")
	require.NoError(t, err)
	assert.Equal(t, 3, ahead)
	assert.Equal(t, 7, behind)
}

func TestIsAncestorTreatsExitOneAsAnswer(t *testing.T) {
	f := newFakeRunner()
	f.on("", "merge-base", "--is-ancestor", "a", "b")
	yes, err := NewRepo(f).IsAncestor(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.True(t, yes)

	f2 := newFakeRunner()
	f2.errors["merge-base --is-ancestor a b"] = fmt.Errorf("git merge-base: exit status 1")
	no, err := NewRepo(f2).IsAncestor(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.False(t, no)

	f3 := newFakeRunner()
	f3.errors["merge-base --is-ancestor a b"] = fmt.Errorf("git merge-base: fatal: bad revision")
	_, err = NewRepo(f3).IsAncestor(context.Background(), "a", "b")
	assert.Error(t, err)
}

func TestPatchIDPipesDiffThroughStableHash(t *testing.T) {
	f := newFakeRunner()
	f.on("diff --git a/f.go b/f.go\n+x\n", "diff-tree", "-p", "abc")
	f.on("0123abcd abc\n", "patch-id", "--stable")

	id, err := NewRepo(f).PatchID(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "0123abcd", id)
	assert.Contains(t, f.lastInput, "diff --git")
}

func TestPatchIDEmptyDiff(t *testing.T) {
	f := newFakeRunner()
	f.on("", "diff-tree", "-p", "abc")

	id, err := NewRepo(f).PatchID(context.Background(), "abc")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRecentCommitsParsesTriples(t *testing.T) {
	f := newFakeRunner()
	f.on("sha1\x00tree1\x002025-03-01T10:00:00Z\nsha2\x00tree2\x002025-02-28T10:00:00Z\nmalformed line\n",
		"log", "-n2", "--format=%H%x00%T%x00%cI", "main")

	metas, err := NewRepo(f).RecentCommits(context.Background(), "main", 2)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "tree1", metas[0].TreeSHA)
	assert.Equal(t, 2025, metas[0].CommittedAt.Year())
}

func TestIsBinaryUsesNumstatDashes(t *testing.T) {
	f := newFakeRunner()
	f.on("-\t-\tlogo.png\n", "diff-tree", "--numstat", "--root", "HEAD", "--", "logo.png")
	f.on("3\t1\tmain.go\n", "diff-tree", "--numstat", "--root", "HEAD", "--", "main.go")

	repo := NewRepo(f)
	binary, err := repo.IsBinary(context.Background(), "logo.png")
	require.NoError(t, err)
	assert.True(t, binary)

	text, err := repo.IsBinary(context.Background(), "main.go")
	require.NoError(t, err)
	assert.False(t, text)
}

func TestLogBuildsExpectedArgs(t *testing.T) {
	f := newFakeRunner()
	key := "log --format=" + LogFormat + " --numstat -n5 --since=2025-01-01 main"
	f.responses[key] = "raw"

	out, err := NewRepo(f).Log(context.Background(), LogOptions{
		Ref: "main", MaxCount: 5, Since: "2025-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "raw", out)
}
