package blame

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devstats/devstats-go/internal/git"
	"github.com/devstats/devstats-go/internal/models"
)

type fakeRunner struct {
	responses map[string]string
	errors    map[string]error
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
	return f.Run(ctx, args...)
}

func (f *fakeRunner) on(out string, args ...string) {
	f.responses[strings.Join(args, " ")] = out
}

func porcelainLine(sha string, lineNo int, name, email string, content string) string {
	return fmt.Sprintf("%s %d %d 1\nauthor %s\nauthor-mail <%s>\nauthor-time 1709290000\ncommitter %s\ncommitter-mail <%s>\ncommitter-time 1709290000\nsummary some change\nfilename f.go\n\t%s\n",
		sha, lineNo, lineNo, name, email, name, email, content)
}

const (
	shaX = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	shaY = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestParsePorcelain(t *testing.T) {
	raw := porcelainLine(shaX, 1, "Ada", "ada@example.com", "package main") +
		porcelainLine(shaY, 2, "Bob", "bob@example.com", "func main() {}")

	lines := parsePorcelain(raw)
	require.Len(t, lines, 2)
	assert.Equal(t, shaX, lines[0].SHA)
	assert.Equal(t, 1, lines[0].LineNumber)
	assert.Equal(t, "ada@example.com", lines[0].Author.Email)
	assert.Equal(t, "Bob", lines[1].Author.Name)
	assert.False(t, lines[0].CommittedAt.IsZero())
}

func TestOwnershipFractionsSumToOne(t *testing.T) {
	lines := []models.BlameLine{
		{Author: models.Identity{Email: "a@x"}},
		{Author: models.Identity{Email: "a@x"}},
		{Author: models.Identity{Email: "a@x"}},
		{Author: models.Identity{Email: "b@x"}},
	}
	stats := aggregate(lines)
	require.Len(t, stats, 2)

	sum := 0.0
	for _, s := range stats {
		sum += s.Ownership
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// sorted by line count descending
	assert.Equal(t, "a@x", stats[0].Author.Email)
	assert.InDelta(t, 0.75, stats[0].Ownership, 1e-9)
}

func TestBusFactor(t *testing.T) {
	tests := []struct {
		name       string
		ownerships []float64
		want       int
	}{
		{"single owner", []float64{1.0}, 1},
		{"one dominates", []float64{0.85, 0.15}, 1},
		{"two needed", []float64{0.5, 0.4, 0.1}, 2},
		{"spread thin", []float64{0.3, 0.3, 0.2, 0.2}, 3},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stats []models.AuthorBlameStat
			for _, o := range tt.ownerships {
				stats = append(stats, models.AuthorBlameStat{Ownership: o})
			}
			assert.Equal(t, tt.want, busFactor(stats, 0.8))
		})
	}
}

func TestBlameFileBinaryIsNotBlameable(t *testing.T) {
	f := newFakeRunner()
	f.on("-\t-\tlogo.png\n", "diff-tree", "--numstat", "--root", "HEAD", "--", "logo.png")

	engine := NewEngine(git.NewRepo(f), DefaultConfig(), nil)
	report, err := engine.BlameFile(context.Background(), "logo.png")
	require.NoError(t, err)
	assert.True(t, report.NotBlameable)
	assert.Equal(t, "binary file", report.Reason)
}

func TestBlameFileMissingDegradesNotFails(t *testing.T) {
	f := newFakeRunner()
	f.on("", "diff-tree", "--numstat", "--root", "HEAD", "--", "gone.go")
	// blame itself errors (file not tracked)

	engine := NewEngine(git.NewRepo(f), DefaultConfig(), nil)
	report, err := engine.BlameFile(context.Background(), "gone.go")
	require.NoError(t, err)
	assert.True(t, report.NotBlameable)
	assert.Contains(t, report.Reason, "blame failed")
}

func TestBlameFileFullReport(t *testing.T) {
	f := newFakeRunner()
	f.on("", "diff-tree", "--numstat", "--root", "HEAD", "--", "f.go")
	raw := porcelainLine(shaX, 1, "Ada", "ada@example.com", "one") +
		porcelainLine(shaX, 2, "Ada", "ada@example.com", "two") +
		porcelainLine(shaY, 3, "Bob", "bob@example.com", "three")
	f.on(raw, "blame", "--line-porcelain", "-M", "-C", "--", "f.go")

	engine := NewEngine(git.NewRepo(f), DefaultConfig(), nil)
	report, err := engine.BlameFile(context.Background(), "f.go")
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalLines)
	require.Len(t, report.Authors, 2)
	assert.Equal(t, "ada@example.com", report.Authors[0].Author.Email)
	// ada's 2/3 alone misses the 0.8 coverage, bob is needed too
	assert.Equal(t, 2, report.BusFactor)
	assert.Empty(t, report.Lines)
}
