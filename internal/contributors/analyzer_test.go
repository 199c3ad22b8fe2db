package contributors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devstats/devstats-go/internal/models"
)

func ec(name, email string, at time.Time, insertions int, files ...string) models.EnrichedCommit {
	var changes []models.FileChange
	for _, f := range files {
		changes = append(changes, models.FileChange{Path: f})
	}
	return models.EnrichedCommit{CommitRecord: models.CommitRecord{
		Author:     models.Identity{Name: name, Email: email},
		AuthoredAt: at,
		Insertions: insertions,
		Files:      changes,
	}}
}

func TestSameEmailAlwaysMerges(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.EnrichedCommit{
		ec("Ada Lovelace", "ada@example.com", now, 10, "a.go"),
		ec("Ada L", "ada@example.com", now.Add(time.Hour), 5, "b.go"),
	}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, nil, nil)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, 2, p.CommitCount)
	assert.Equal(t, 15, p.Insertions)
	assert.Equal(t, 2, p.FilesTouched)
	assert.Len(t, p.Aliases, 1)
}

func TestSameNameMergesWhenUnambiguous(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.EnrichedCommit{
		ec("Ada Lovelace", "ada@work.com", now, 10),
		ec("Ada Lovelace", "ada@home.net", now.Add(time.Hour), 5),
	}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, nil, nil)
	require.Len(t, profiles, 1)
	assert.Equal(t, 2, profiles[0].CommitCount)
}

func TestSharedNameWithDifferentDominantNamesStaysSplit(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	// alex@a.com mostly commits as "Alex Chen"; the bare "Alex" is a
	// minority name there, so merging with alex@b.com would be a guess
	commits := []models.EnrichedCommit{
		ec("Alex Chen", "alex@a.com", now, 1),
		ec("Alex Chen", "alex@a.com", now.Add(time.Hour), 1),
		ec("Alex", "alex@a.com", now.Add(2*time.Hour), 1),
		ec("Alex", "alex@b.com", now.Add(3*time.Hour), 1),
	}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, nil, nil)
	assert.Len(t, profiles, 2)
}

func TestCanonicalIsMostUsedIdentity(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.EnrichedCommit{
		ec("A. Lovelace", "ada@example.com", now, 1),
		ec("Ada Lovelace", "ada@example.com", now.Add(time.Hour), 1),
		ec("Ada Lovelace", "ada@example.com", now.Add(2*time.Hour), 1),
	}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, nil, nil)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Ada Lovelace", profiles[0].Canonical.Name)
}

func TestResolutionIsOrderIndependent(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.EnrichedCommit{
		ec("Ada Lovelace", "ada@work.com", now, 10, "a.go"),
		ec("Ada Lovelace", "ada@home.net", now.Add(time.Hour), 5, "b.go"),
		ec("Grace Hopper", "grace@navy.mil", now.Add(2*time.Hour), 7, "c.go"),
		ec("Grace Hopper", "grace@navy.mil", now.Add(3*time.Hour), 2, "c.go"),
		ec("Alex", "alex@b.com", now.Add(4*time.Hour), 1),
	}

	forward := NewAnalyzer(nil, nil).Analyze(commits, nil, nil)

	reversed := make([]models.EnrichedCommit, len(commits))
	for i, c := range commits {
		reversed[len(commits)-1-i] = c
	}
	backward := NewAnalyzer(nil, nil).Analyze(reversed, nil, nil)

	assert.Equal(t, forward, backward)
}

func TestActiveDaysCountedInConfiguredTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// one UTC day, two local days
	commits := []models.EnrichedCommit{
		ec("Dev", "dev@x.com", time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC), 1),
		ec("Dev", "dev@x.com", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), 1),
	}

	utcProfiles := NewAnalyzer(nil, nil).Analyze(commits, nil, nil)
	require.Len(t, utcProfiles, 1)
	assert.Equal(t, 1, utcProfiles[0].ActiveDays)

	localProfiles := NewAnalyzer(loc, nil).Analyze(commits, nil, nil)
	require.Len(t, localProfiles, 1)
	assert.Equal(t, 2, localProfiles[0].ActiveDays)
}

func TestSurvivalRateSentinelWithoutBlame(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.EnrichedCommit{ec("Dev", "dev@x.com", now, 100)}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, nil, nil)
	require.Len(t, profiles, 1)
	assert.Equal(t, -1.0, profiles[0].SurvivalRate)
}

func TestSurvivalRateFromBlameSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.EnrichedCommit{ec("Dev", "dev@x.com", now, 100)}
	blames := []models.FileBlameReport{{
		Path:       "f.go",
		TotalLines: 60,
		Authors: []models.AuthorBlameStat{
			{Author: models.Identity{Email: "dev@x.com"}, Lines: 60, Ownership: 1.0},
		},
	}}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, blames, nil)
	require.Len(t, profiles, 1)
	assert.InDelta(t, 0.6, profiles[0].SurvivalRate, 1e-9)
}

func TestSurvivalRateClampedToOne(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	// renames and cherry-picks can attribute more surviving lines than
	// recorded insertions
	commits := []models.EnrichedCommit{ec("Dev", "dev@x.com", now, 10)}
	blames := []models.FileBlameReport{{
		Path: "f.go", TotalLines: 50,
		Authors: []models.AuthorBlameStat{
			{Author: models.Identity{Email: "dev@x.com"}, Lines: 50, Ownership: 1.0},
		},
	}}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, blames, nil)
	assert.Equal(t, 1.0, profiles[0].SurvivalRate)
}

func TestProfilesSortedByCommitCount(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.EnrichedCommit{
		ec("Minor", "minor@x.com", now, 1),
		ec("Major", "major@x.com", now, 1),
		ec("Major", "major@x.com", now.Add(time.Hour), 1),
	}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, nil, nil)
	require.Len(t, profiles, 2)
	assert.Equal(t, "major@x.com", profiles[0].Canonical.Email)
}

func TestMaxStreakDaysJoined(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.EnrichedCommit{ec("Dev", "dev@x.com", now, 1)}

	profiles := NewAnalyzer(nil, nil).Analyze(commits, nil, map[string]int{"dev@x.com": 7})
	require.Len(t, profiles, 1)
	assert.Equal(t, 7, profiles[0].MaxStreakDays)
}
