package branch

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/devstats/devstats-go/internal/git"
	"github.com/devstats/devstats-go/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AnalyzerConfig bounds the branch survey.
type AnalyzerConfig struct {
	Target        string // merge target; empty = current branch
	IncludeRemote bool
	WorkerLimit   int // concurrent per-branch analyses, default 8
	Detector      DetectorConfig
	Scorer        ScorerConfig
}

// Analyzer surveys every branch against the merge target. Per-branch
// failures produce skipped entries; the survey itself only fails when
// the branch list cannot be read at all.
type Analyzer struct {
	repo     *git.Repo
	detector *Detector
	scorer   *Scorer
	cfg      AnalyzerConfig
	logger   *logrus.Logger
}

// NewAnalyzer wires a branch analyzer from its parts.
func NewAnalyzer(repo *git.Repo, detector *Detector, scorer *Scorer, cfg AnalyzerConfig, logger *logrus.Logger) *Analyzer {
	if cfg.WorkerLimit <= 0 {
		cfg.WorkerLimit = 8
	}
	return &Analyzer{repo: repo, detector: detector, scorer: scorer, cfg: cfg, logger: logger}
}

// Analyze produces one report per branch, sorted by deletability score
// descending then name. The target branch itself is excluded.
func (a *Analyzer) Analyze(ctx context.Context) ([]models.BranchReport, error) {
	target := a.cfg.Target
	if target == "" {
		current, err := a.repo.CurrentBranch(ctx)
		if err != nil {
			return nil, err
		}
		target = current
	}

	refs, err := a.repo.ListBranches(ctx, a.cfg.IncludeRemote)
	if err != nil {
		return nil, err
	}

	reports := make([]models.BranchReport, 0, len(refs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.WorkerLimit)
	for _, ref := range refs {
		if isTargetRef(ref.Name, target) {
			continue
		}
		ref := ref
		g.Go(func() error {
			report := a.analyzeOne(gctx, ref, target)
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].DeletabilityScore != reports[j].DeletabilityScore {
			return reports[i].DeletabilityScore > reports[j].DeletabilityScore
		}
		return reports[i].Name < reports[j].Name
	})

	if a.logger != nil {
		skipped := 0
		for _, r := range reports {
			if r.Skipped {
				skipped++
			}
		}
		a.logger.WithFields(logrus.Fields{
			"branches": len(reports),
			"skipped":  skipped,
			"target":   target,
		}).Info("branch survey complete")
	}
	return reports, nil
}

// analyzeOne never returns an error: any failure yields a skipped
// report so one unreadable branch cannot sink the survey.
func (a *Analyzer) analyzeOne(ctx context.Context, ref git.BranchRef, target string) models.BranchReport {
	report := models.BranchReport{Name: ref.Name, IsRemote: ref.IsRemote, LastCommitSHA: ref.SHA}

	name, email, at, err := a.repo.TipInfo(ctx, ref.SHA)
	if err != nil {
		return skip(report, "tip info: "+err.Error(), a.logger)
	}
	report.LastAuthor = models.Identity{Name: name, Email: email}
	report.LastCommitAt = at

	ahead, behind, err := a.repo.AheadBehind(ctx, ref.Name, target)
	if err != nil {
		return skip(report, "ahead/behind: "+err.Error(), a.logger)
	}
	report.CommitsAhead = ahead
	report.CommitsBehind = behind

	status, err := a.detector.Detect(ctx, ref.Name, target, at)
	if err != nil {
		return skip(report, "merge detection: "+err.Error(), a.logger)
	}
	report.Merge = status

	report.DeletabilityScore, report.DeletabilityCategory = a.scorer.Score(ref.Name, status, at)
	report.Status = a.scorer.StatusFor(ref.Name, at)
	return report
}

func skip(report models.BranchReport, reason string, logger *logrus.Logger) models.BranchReport {
	report.Skipped = true
	report.SkipReason = reason
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"branch": report.Name,
			"reason": reason,
		}).Warn("branch skipped")
	}
	return report
}

// isTargetRef matches both "main" and its remote-tracking twin
// "origin/main" against the target.
func isTargetRef(name, target string) bool {
	if name == target {
		return true
	}
	return strings.HasSuffix(name, "/"+target)
}
