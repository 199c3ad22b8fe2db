package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devstats/devstats-go/internal/blame"
	"github.com/devstats/devstats-go/internal/branch"
	"github.com/devstats/devstats-go/internal/cache"
	"github.com/devstats/devstats-go/internal/config"
	"github.com/devstats/devstats-go/internal/contributors"
	"github.com/devstats/devstats-go/internal/enrich"
	"github.com/devstats/devstats-go/internal/git"
	"github.com/devstats/devstats-go/internal/ingest"
	"github.com/devstats/devstats-go/internal/logging"
	"github.com/devstats/devstats-go/internal/patterns"
)

// app carries the shared state subcommands need, wired once in
// PersistentPreRunE.
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	closeLog   func() error
	blameStore *cache.Store
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var cfgFile string
	var verbose bool

	root := &cobra.Command{
		Use:   "devstats",
		Short: "Git history intelligence: commits, branches, ownership, anomalies",
		Long: `devstats mines a git repository's history into classified commit
records, branch merge and deletability verdicts, blame-derived
ownership, resolved contributor profiles, and anomaly findings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			level := cfg.Log.Level
			if verbose {
				level = "debug"
			}
			if cfg.Log.File != "" {
				logger, closeFn, lerr := logging.NewWithFile(cfg.Log.File, level, cfg.Log.Format)
				if lerr != nil {
					return lerr
				}
				a.logger = logger
				a.closeLog = closeFn
			} else {
				a.logger = logging.New(os.Stderr, level, cfg.Log.Format)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.blameStore != nil {
				a.blameStore.Close()
			}
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./devstats.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().String("repo", "", "repository path (overrides config)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newBranchesCmd(a),
		newBlameCmd(a),
		newContributorsCmd(a),
		newPatternsCmd(a),
		newLogCmd(a),
		newRunsCmd(a),
		newAuthCmd(a),
	)
	return root
}

// repoPath resolves the repository path from flag or config.
func (a *app) repoPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("repo"); p != "" {
		return p
	}
	if p, _ := cmd.InheritedFlags().GetString("repo"); p != "" {
		return p
	}
	return a.cfg.Repo.Path
}

// newRepo builds the git transport with the long timeout: history and
// blame reads dominate every command's runtime.
func (a *app) newRepo(cmd *cobra.Command) *git.Repo {
	timeout := time.Duration(a.cfg.Repo.LogTimeoutSecs) * time.Second
	return git.NewRepo(git.NewExecRunner(a.repoPath(cmd), timeout, a.logger))
}

// location resolves the configured calendar timezone, UTC on any error.
func (a *app) location() *time.Location {
	if a.cfg.Analysis.Timezone != "" {
		if l, err := time.LoadLocation(a.cfg.Analysis.Timezone); err == nil {
			return l
		}
	}
	return time.UTC
}

func (a *app) newEnricher() *enrich.Enricher {
	return enrich.NewEnricher(enrich.SizeThresholds{
		Tiny:   a.cfg.Analysis.SizeTiny,
		Small:  a.cfg.Analysis.SizeSmall,
		Medium: a.cfg.Analysis.SizeMedium,
		Large:  a.cfg.Analysis.SizeLarge,
	}, a.location())
}

func (a *app) newHarvester(repo *git.Repo) *ingest.Harvester {
	return ingest.NewHarvester(repo, a.logger)
}

func (a *app) newBranchAnalyzer(repo *git.Repo) *branch.Analyzer {
	detector := branch.NewDetector(repo, cache.NewRunCache(), branch.DetectorConfig{
		ConfidenceFloor:  a.cfg.Branch.ConfidenceFloor,
		SquashScanWindow: a.cfg.Branch.SquashScanWindow,
		RebaseScanCap:    100,
	}, a.logger)
	scorer := branch.NewScorer(branch.ScorerConfig{
		ProtectedPatterns:  a.cfg.Branch.ProtectedPatterns,
		StaleAfterDays:     a.cfg.Branch.StaleAfterDays,
		AbandonedAfterDays: a.cfg.Branch.AbandonedAfterDays,
	})
	return branch.NewAnalyzer(repo, detector, scorer, branch.AnalyzerConfig{
		Target:        a.cfg.Branch.Target,
		IncludeRemote: a.cfg.Branch.IncludeRemote,
		WorkerLimit:   a.cfg.Analysis.WorkerLimit,
	}, a.logger)
}

func (a *app) newBlameEngine(repo *git.Repo) *blame.Engine {
	engine := blame.NewEngine(repo, blame.Config{
		BusFactorCoverage: a.cfg.Blame.BusFactorCoverage,
		FollowRenames:     a.cfg.Blame.FollowRenames,
	}, a.logger)

	if a.cfg.Blame.CachePath != "" {
		if a.blameStore == nil {
			store, err := cache.OpenStore(a.cfg.Blame.CachePath)
			if err != nil {
				a.logger.WithField("error", err).Warn("blame cache unavailable")
			} else {
				a.blameStore = store
			}
		}
		if a.blameStore != nil {
			engine.WithStore(a.blameStore)
		}
	}
	return engine
}

func (a *app) newContributorAnalyzer() *contributors.Analyzer {
	return contributors.NewAnalyzer(a.location(), a.logger)
}

func (a *app) patternConfig() patterns.Config {
	return patterns.Config{
		ProtectedPatterns: a.cfg.Branch.ProtectedPatterns,
		BlameNoiseFloor:   a.cfg.Blame.NoiseFloorLines,
		OversizedChurn:    a.cfg.Analysis.OversizedChurn,
		ShortSubjectLen:   a.cfg.Analysis.ShortSubjectLen,
		NightStartHour:    0,
		NightEndHour:      5,
	}
}
