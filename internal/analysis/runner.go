// Package analysis orchestrates one end-to-end run: ingest, enrich,
// then fan analysis out across the independent consumers.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/devstats/devstats-go/internal/blame"
	"github.com/devstats/devstats-go/internal/branch"
	"github.com/devstats/devstats-go/internal/contributors"
	"github.com/devstats/devstats-go/internal/enrich"
	"github.com/devstats/devstats-go/internal/git"
	"github.com/devstats/devstats-go/internal/ingest"
	"github.com/devstats/devstats-go/internal/models"
	"github.com/devstats/devstats-go/internal/patterns"
)

// Options select what one run covers.
type Options struct {
	RepoPath     string
	Target       string
	MaxDepth     int
	Since        string
	Until        string
	WithBranches bool
	WithBlame    bool
	WithPatterns bool
	// PatchWindow bounds how many recent commits get full diffs fetched
	// for secret scanning, default 100.
	PatchWindow int
}

// PRAnnotator supplies pull-request evidence for branch names. Optional.
type PRAnnotator interface {
	AnnotateBranches(ctx context.Context, annotate func(branch string, has bool), branches []string)
}

// Runner owns the component graph for one repository.
type Runner struct {
	repo         *git.Repo
	harvester    *ingest.Harvester
	enricher     *enrich.Enricher
	branches     *branch.Analyzer
	blamer       *blame.Engine
	contributors *contributors.Analyzer
	registry     *patterns.Registry
	patternCfg   patterns.Config
	annotator    PRAnnotator
	logger       *logrus.Logger
}

// NewRunner wires a runner from already-constructed components. Nil
// branches, blamer, or annotator disable the corresponding stage.
func NewRunner(
	repo *git.Repo,
	harvester *ingest.Harvester,
	enricher *enrich.Enricher,
	branches *branch.Analyzer,
	blamer *blame.Engine,
	contribs *contributors.Analyzer,
	registry *patterns.Registry,
	patternCfg patterns.Config,
	annotator PRAnnotator,
	logger *logrus.Logger,
) *Runner {
	return &Runner{
		repo:         repo,
		harvester:    harvester,
		enricher:     enricher,
		branches:     branches,
		blamer:       blamer,
		contributors: contribs,
		registry:     registry,
		patternCfg:   patternCfg,
		annotator:    annotator,
		logger:       logger,
	}
}

// Run executes the full pipeline. The initial history read is the only
// fatal stage: each downstream consumer that fails surfaces in
// Diagnostics while the rest of the report stands.
func (r *Runner) Run(ctx context.Context, opts Options) (*models.AnalysisReport, error) {
	started := time.Now()
	report := &models.AnalysisReport{
		RunID:     uuid.NewString(),
		RepoPath:  opts.RepoPath,
		StartedAt: started.UTC(),
	}

	target := opts.Target
	if target == "" {
		current, err := r.repo.CurrentBranch(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve target branch: %w", err)
		}
		target = current
	}
	report.TargetBranch = target

	records, err := r.harvester.Harvest(ctx, ingest.Options{
		Ref:      target,
		MaxDepth: opts.MaxDepth,
		Since:    opts.Since,
		Until:    opts.Until,
	})
	if err != nil {
		return nil, err
	}
	report.Commits = r.enricher.Enrich(records)

	var (
		mu          sync.Mutex
		diagnostics []string
	)
	diag := func(stage string, derr error) {
		mu.Lock()
		diagnostics = append(diagnostics, fmt.Sprintf("%s: %v", stage, derr))
		mu.Unlock()
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"stage": stage, "error": derr}).Warn("stage degraded")
		}
	}

	// branches and blame hit git concurrently; contributors and patterns
	// need blame output, so they run after the barrier
	g, gctx := errgroup.WithContext(ctx)

	if opts.WithBranches && r.branches != nil {
		g.Go(func() error {
			reports, berr := r.branches.Analyze(gctx)
			if berr != nil {
				diag("branches", berr)
				return nil
			}
			mu.Lock()
			report.Branches = reports
			mu.Unlock()
			return nil
		})
	}

	if opts.WithBlame && r.blamer != nil {
		g.Go(func() error {
			blames, berr := r.blamer.BlameAll(gctx)
			if berr != nil {
				diag("blame", berr)
			}
			mu.Lock()
			report.Blames = blames
			mu.Unlock()
			return nil
		})
	}

	var patches map[string]string
	var reflogs map[string]string
	if opts.WithPatterns {
		g.Go(func() error {
			patches = r.fetchPatches(gctx, report.Commits, opts.PatchWindow)
			reflogs = r.fetchReflogs(gctx, target)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if r.annotator != nil && len(report.Branches) > 0 {
		r.annotateBranches(ctx, report)
	}

	var blamesForJoin []models.FileBlameReport
	if opts.WithBlame {
		blamesForJoin = report.Blames
	}
	report.Contributors = r.contributors.Analyze(
		report.Commits, blamesForJoin, r.enricher.MaxStreakDays(report.Commits))

	if opts.WithPatterns && r.registry != nil {
		report.Patterns = r.registry.Detect(patterns.Input{
			Commits:      report.Commits,
			Branches:     report.Branches,
			Blames:       report.Blames,
			Contributors: report.Contributors,
			Patches:      patches,
			Reflog:       reflogs,
			Config:       r.patternCfg,
			Now:          time.Now().UTC(),
		})
	}

	report.Diagnostics = diagnostics
	report.Duration = time.Since(started)
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"run_id":   report.RunID,
			"commits":  len(report.Commits),
			"branches": len(report.Branches),
			"duration": report.Duration.Round(time.Millisecond),
		}).Info("analysis complete")
	}
	return report, nil
}

// fetchPatches pulls unified diffs for the most recent commits. Failures
// shrink the scan surface rather than failing the run.
func (r *Runner) fetchPatches(ctx context.Context, commits []models.EnrichedCommit, window int) map[string]string {
	if window <= 0 {
		window = 100
	}
	if window > len(commits) {
		window = len(commits)
	}
	patches := make(map[string]string, window)
	for _, c := range commits[:window] {
		if c.IsMerge() || c.Partial {
			continue
		}
		patch, err := r.repo.ShowPatch(ctx, c.SHA)
		if err != nil {
			continue
		}
		patches[c.SHA] = patch
	}
	return patches
}

func (r *Runner) fetchReflogs(ctx context.Context, target string) map[string]string {
	out, err := r.repo.Reflog(ctx, target)
	if err != nil {
		return nil
	}
	return map[string]string{target: out}
}

func (r *Runner) annotateBranches(ctx context.Context, report *models.AnalysisReport) {
	names := make([]string, 0, len(report.Branches))
	index := make(map[string]int, len(report.Branches))
	for i, b := range report.Branches {
		if b.Skipped {
			continue
		}
		names = append(names, b.Name)
		index[b.Name] = i
	}
	r.annotator.AnnotateBranches(ctx, func(branchName string, has bool) {
		if i, ok := index[branchName]; ok {
			report.Branches[i].Merge.HasPullRequest = has
		}
	}, names)
}
