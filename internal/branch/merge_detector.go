// Package branch determines how branch content reached the target and
// scores branches for deletability.
package branch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/devstats/devstats-go/internal/cache"
	"github.com/devstats/devstats-go/internal/git"
	"github.com/devstats/devstats-go/internal/models"
	"github.com/sirupsen/logrus"
)

// DetectorConfig bounds and tunes merge detection.
type DetectorConfig struct {
	// ConfidenceFloor is the minimum squash/rebase confidence to count
	// as merged. Exact detection is binary.
	ConfidenceFloor float64
	// SquashScanWindow caps how many recent target commits the squash
	// strategy inspects.
	SquashScanWindow int
	// RebaseScanCap caps how many unique commits per side get patch-id
	// digests.
	RebaseScanCap int
}

// DefaultDetectorConfig returns the documented defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{ConfidenceFloor: 0.6, SquashScanWindow: 50, RebaseScanCap: 100}
}

// Detector runs the three merge-detection strategies for one branch.
// All three are always attempted so their confidences stay comparable;
// none short-circuits the others.
type Detector struct {
	repo   *git.Repo
	cache  *cache.RunCache
	cfg    DetectorConfig
	logger *logrus.Logger
}

// NewDetector creates a merge detector. The cache memoizes patch-id
// digests for the lifetime of one run.
func NewDetector(repo *git.Repo, rc *cache.RunCache, cfg DetectorConfig, logger *logrus.Logger) *Detector {
	if cfg.ConfidenceFloor <= 0 {
		cfg = DefaultDetectorConfig()
	}
	return &Detector{repo: repo, cache: rc, cfg: cfg, logger: logger}
}

// Detect computes the merge status of branch relative to target.
// Re-running on unchanged history yields an identical result.
func (d *Detector) Detect(ctx context.Context, branchName, target string, lastActivity time.Time) (models.MergeStatus, error) {
	status := models.MergeStatus{Branch: branchName}

	exact, err := d.repo.IsAncestor(ctx, branchName, target)
	if err != nil {
		return status, fmt.Errorf("ancestor check for %s: %w", branchName, err)
	}
	status.ExactMerged = exact

	unique, err := d.repo.UniqueCommits(ctx, branchName, target)
	if err != nil {
		return status, fmt.Errorf("unique commits for %s: %w", branchName, err)
	}
	// zero unique commits means everything is already on the target
	if len(unique) == 0 {
		status.ExactMerged = true
	}

	if conf, ok := d.detectSquash(ctx, branchName, target, lastActivity); ok {
		status.SquashConfidence = conf
		status.SquashMerged = conf >= d.cfg.ConfidenceFloor
	}
	if conf, ok := d.detectRebase(ctx, unique, target, branchName); ok {
		status.RebaseConfidence = conf
		status.RebaseMerged = conf >= d.cfg.ConfidenceFloor
	}
	return status, nil
}

// detectSquash checks whether a single target commit recreates the
// branch's net change: the tree produced by replaying the branch onto
// the merge base is compared against the trees of recent target
// commits. Confidence is higher the closer the matching commit sits to
// the branch's last activity; among equally distant matches the
// earliest wins, avoiding false attribution to unrelated later work.
func (d *Detector) detectSquash(ctx context.Context, branchName, target string, lastActivity time.Time) (float64, bool) {
	base, err := d.repo.MergeBase(ctx, branchName, target)
	if err != nil || base == "" {
		return 0, false
	}
	branchTree, err := d.repo.MergeTreeSHA(ctx, base, branchName)
	if err != nil || branchTree == "" {
		return 0, false
	}

	metas, err := d.repo.RecentCommits(ctx, target, d.cfg.SquashScanWindow)
	if err != nil {
		return 0, false
	}

	bestConf := 0.0
	found := false
	// metas are newest first; iterate oldest first so the earliest
	// qualifying match wins ties
	for i := len(metas) - 1; i >= 0; i-- {
		m := metas[i]
		if m.TreeSHA != branchTree {
			continue
		}
		conf := squashConfidence(m.CommittedAt, lastActivity)
		if conf > bestConf {
			bestConf = conf
			found = true
		}
	}
	return bestConf, found
}

// squashConfidence decays with the gap between the matching target
// commit and the branch's last activity: same-week matches score near
// 1.0, matches months apart approach the floor.
func squashConfidence(matchTime, lastActivity time.Time) float64 {
	gapDays := math.Abs(matchTime.Sub(lastActivity).Hours()) / 24
	conf := 1.0 - gapDays/180.0
	if conf < 0.5 {
		conf = 0.5
	}
	return conf
}

// detectRebase matches content-derived patch identities of the branch's
// unique commits against those unique to the target. Confidence is the
// fraction of branch commits that found a match.
func (d *Detector) detectRebase(ctx context.Context, branchUnique []string, target, branchName string) (float64, bool) {
	if len(branchUnique) == 0 {
		return 0, false
	}
	if len(branchUnique) > d.cfg.RebaseScanCap {
		branchUnique = branchUnique[:d.cfg.RebaseScanCap]
	}

	targetUnique, err := d.repo.UniqueCommits(ctx, target, branchName)
	if err != nil {
		return 0, false
	}
	if len(targetUnique) > d.cfg.RebaseScanCap {
		targetUnique = targetUnique[:d.cfg.RebaseScanCap]
	}

	targetIDs := make(map[string]bool, len(targetUnique))
	for _, sha := range targetUnique {
		if id := d.patchID(ctx, sha); id != "" {
			targetIDs[id] = true
		}
	}
	if len(targetIDs) == 0 {
		return 0, false
	}

	matched := 0
	for _, sha := range branchUnique {
		if id := d.patchID(ctx, sha); id != "" && targetIDs[id] {
			matched++
		}
	}
	if matched == 0 {
		return 0, false
	}
	return float64(matched) / float64(len(branchUnique)), true
}

func (d *Detector) patchID(ctx context.Context, sha string) string {
	if id, ok := d.cache.PatchID(sha); ok {
		return id
	}
	id, err := d.repo.PatchID(ctx, sha)
	if err != nil {
		if d.logger != nil {
			d.logger.WithField("sha", sha).Debug("patch-id failed")
		}
		return ""
	}
	d.cache.SetPatchID(sha, id)
	return id
}
