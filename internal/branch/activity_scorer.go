package branch

import (
	"path"
	"time"

	"github.com/devstats/devstats-go/internal/models"
)

// ScorerConfig tunes deletability scoring.
type ScorerConfig struct {
	// ProtectedPatterns are glob patterns; matching branches score 0
	// regardless of other signals.
	ProtectedPatterns []string
	// StaleAfterDays and AbandonedAfterDays bound the age component.
	StaleAfterDays     int
	AbandonedAfterDays int
}

// DefaultScorerConfig returns the documented defaults.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		ProtectedPatterns:  []string{"main", "master", "develop", "release/*"},
		StaleAfterDays:     30,
		AbandonedAfterDays: 90,
	}
}

// Scorer turns merge evidence and branch age into a 0-100 deletability
// score. Merge evidence carries up to 60 points scaled by confidence;
// age saturates at 40 points once the branch passes the abandoned
// threshold. Protection overrides everything.
type Scorer struct {
	cfg ScorerConfig
	now func() time.Time
}

// NewScorer creates a scorer. A zero config gets the defaults.
func NewScorer(cfg ScorerConfig) *Scorer {
	if len(cfg.ProtectedPatterns) == 0 && cfg.AbandonedAfterDays == 0 {
		cfg = DefaultScorerConfig()
	}
	return &Scorer{cfg: cfg, now: time.Now}
}

// IsProtected reports whether the branch name matches a protected
// pattern. Remote-tracking prefixes are stripped before matching so
// "origin/main" is protected when "main" is.
func (s *Scorer) IsProtected(name string) bool {
	short := name
	if idx := lastRemotePrefix(name); idx >= 0 {
		short = name[idx+1:]
	}
	for _, pat := range s.cfg.ProtectedPatterns {
		if ok, err := path.Match(pat, short); err == nil && ok {
			return true
		}
		if ok, err := path.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

func lastRemotePrefix(name string) int {
	for _, remote := range []string{"origin/", "upstream/"} {
		if len(name) > len(remote) && name[:len(remote)] == remote {
			return len(remote) - 1
		}
	}
	return -1
}

// Score computes the deletability score and category for a branch.
func (s *Scorer) Score(name string, status models.MergeStatus, lastActivity time.Time) (int, models.DeletabilityCategory) {
	if s.IsProtected(name) {
		return 0, models.CategoryKeep
	}

	score := 0.0
	if status.ExactMerged {
		score += 60
	} else if best := status.BestConfidence(); best > 0 && (status.SquashMerged || status.RebaseMerged) {
		score += 60 * best
	}
	score += s.agePoints(lastActivity)

	total := int(score + 0.5)
	if total > 100 {
		total = 100
	}
	return total, categorize(total)
}

// agePoints grows linearly with inactivity and saturates at 40 once the
// branch is past the abandoned threshold.
func (s *Scorer) agePoints(lastActivity time.Time) float64 {
	if lastActivity.IsZero() {
		return 0
	}
	days := s.now().Sub(lastActivity).Hours() / 24
	if days <= 0 {
		return 0
	}
	abandoned := float64(s.cfg.AbandonedAfterDays)
	if abandoned <= 0 {
		abandoned = 90
	}
	if days >= abandoned {
		return 40
	}
	return 40 * days / abandoned
}

// StatusFor classifies branch freshness from its last activity.
func (s *Scorer) StatusFor(name string, lastActivity time.Time) models.BranchStatus {
	if s.IsProtected(name) {
		return models.BranchProtected
	}
	days := s.now().Sub(lastActivity).Hours() / 24
	switch {
	case days >= float64(s.cfg.AbandonedAfterDays):
		return models.BranchAbandoned
	case days >= float64(s.cfg.StaleAfterDays):
		return models.BranchStale
	default:
		return models.BranchActive
	}
}

func categorize(score int) models.DeletabilityCategory {
	switch {
	case score >= 80:
		return models.CategorySafeToDelete
	case score >= 50:
		return models.CategoryLikelyDeletable
	case score >= 20:
		return models.CategoryUncertain
	default:
		return models.CategoryKeep
	}
}
