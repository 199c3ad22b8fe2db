package branch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/devstats/devstats-go/internal/models"
)

func fixedScorer(t *testing.T) *Scorer {
	t.Helper()
	s := NewScorer(DefaultScorerConfig())
	s.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestProtectedBranchAlwaysKeep(t *testing.T) {
	s := fixedScorer(t)
	longAgo := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, name := range []string{"main", "master", "develop", "release/2.0", "origin/main"} {
		score, category := s.Score(name, models.MergeStatus{ExactMerged: true}, longAgo)
		assert.Equal(t, 0, score, name)
		assert.Equal(t, models.CategoryKeep, category, name)
	}
}

func TestExactMergedOldBranchIsSafeToDelete(t *testing.T) {
	s := fixedScorer(t)
	lastActivity := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) // > 90 days

	score, category := s.Score("feature/done", models.MergeStatus{ExactMerged: true}, lastActivity)
	assert.Equal(t, 100, score)
	assert.Equal(t, models.CategorySafeToDelete, category)
}

func TestConfidenceScalesMergePoints(t *testing.T) {
	s := fixedScorer(t)
	fresh := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	exact, _ := s.Score("a", models.MergeStatus{ExactMerged: true}, fresh)
	squash, _ := s.Score("b", models.MergeStatus{SquashMerged: true, SquashConfidence: 0.7}, fresh)
	unmerged, _ := s.Score("c", models.MergeStatus{}, fresh)

	assert.Equal(t, 60, exact)
	assert.Equal(t, 42, squash)
	assert.Equal(t, 0, unmerged)
}

func TestUnmergedRecentBranchNeverSafeToDelete(t *testing.T) {
	s := fixedScorer(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for days := 0; days <= 90; days++ {
		lastActivity := now.AddDate(0, 0, -days)
		_, category := s.Score("feature/live", models.MergeStatus{}, lastActivity)
		assert.NotEqual(t, models.CategorySafeToDelete, category, "age %d days", days)
	}
}

func TestAgePointsSaturate(t *testing.T) {
	s := fixedScorer(t)

	atThreshold := s.agePoints(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))  // 90 days
	wayPast := s.agePoints(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))      // years
	halfway := s.agePoints(time.Date(2025, 4, 17, 0, 0, 0, 0, time.UTC))     // 45 days

	assert.Equal(t, 40.0, atThreshold)
	assert.Equal(t, 40.0, wayPast)
	assert.InDelta(t, 20.0, halfway, 0.01)
}

func TestCategorization(t *testing.T) {
	tests := []struct {
		score int
		want  models.DeletabilityCategory
	}{
		{100, models.CategorySafeToDelete},
		{80, models.CategorySafeToDelete},
		{79, models.CategoryLikelyDeletable},
		{50, models.CategoryLikelyDeletable},
		{49, models.CategoryUncertain},
		{20, models.CategoryUncertain},
		{19, models.CategoryKeep},
		{0, models.CategoryKeep},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorize(tt.score), "score %d", tt.score)
	}
}

func TestStatusFor(t *testing.T) {
	s := fixedScorer(t)

	assert.Equal(t, models.BranchProtected, s.StatusFor("main", time.Time{}))
	assert.Equal(t, models.BranchActive, s.StatusFor("f", time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.BranchStale, s.StatusFor("f", time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.BranchAbandoned, s.StatusFor("f", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}
