package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devstats/devstats-go/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite3", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport() *models.AnalysisReport {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.AnalysisReport{
		RunID:        "run-1",
		RepoPath:     "/tmp/repo",
		TargetBranch: "main",
		StartedAt:    now,
		Duration:     3 * time.Second,
		Commits: []models.EnrichedCommit{
			{
				CommitRecord: models.CommitRecord{
					SHA:        "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
					Author:     models.Identity{Name: "Dev", Email: "dev@x.com"},
					AuthoredAt: now,
					Subject:    "feat: thing",
					Insertions: 10,
				},
				ConventionalType: "feat",
				Size:             models.SizeSmall,
			},
		},
		Branches: []models.BranchReport{
			{
				Name:                 "feature/x",
				LastCommitSHA:        "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
				LastCommitAt:         now,
				CommitsAhead:         2,
				Merge:                models.MergeStatus{ExactMerged: true},
				DeletabilityScore:    85,
				DeletabilityCategory: models.CategorySafeToDelete,
				Status:               models.BranchStale,
			},
		},
		Blames: []models.FileBlameReport{
			{
				Path: "f.go", TotalLines: 100, BusFactor: 2,
				Authors: []models.AuthorBlameStat{
					{Author: models.Identity{Email: "dev@x.com"}, Lines: 100, Ownership: 1},
				},
			},
		},
		Contributors: []models.ContributorProfile{
			{
				Canonical:     models.Identity{Name: "Dev", Email: "dev@x.com"},
				CommitCount:   1,
				Insertions:    10,
				ActiveDays:    1,
				FirstCommitAt: now,
				LastCommitAt:  now,
				SurvivalRate:  -1,
			},
		},
		Patterns: []models.DetectedPattern{
			{
				Detector: "oversized_commits", Severity: models.SeverityWarning,
				Description: "big", Evidence: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				DetectedAt: now,
			},
		},
		Diagnostics: []string{"blame: degraded"},
	}
}

func TestSaveAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveReport(ctx, sampleReport()))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "main", runs[0].TargetBranch)
	assert.Equal(t, int64(3000), runs[0].DurationMS)
}

func TestSaveReportPersistsAllFamilies(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveReport(ctx, sampleReport()))

	counts := map[string]int{}
	for _, table := range []string{"commits", "branches", "blames", "contributors", "patterns"} {
		var n int
		require.NoError(t, store.db.Get(&n, "SELECT COUNT(*) FROM "+table))
		counts[table] = n
	}
	for table, n := range counts {
		assert.Equal(t, 1, n, table)
	}
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveReport(ctx, sampleReport()))
	assert.Error(t, store.SaveReport(ctx, sampleReport()))
}
