package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devstats/devstats-go/internal/analysis"
	"github.com/devstats/devstats-go/internal/github"
	"github.com/devstats/devstats-go/internal/output"
	"github.com/devstats/devstats-go/internal/patterns"
	"github.com/devstats/devstats-go/internal/storage"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		target   string
		maxDepth int
		since    string
		until    string
		format   string
		save     bool
		noBranch bool
		noBlame  bool
	)

	cmd := &cobra.Command{
		Use:     "analyze",
		Aliases: []string{"analyse"},
		Short:   "Run the full pipeline and render a combined report",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := a.newRepo(cmd)

			var annotator analysis.PRAnnotator
			if a.cfg.GitHub.Enabled {
				annotator = github.NewClient(cmd.Context(),
					a.cfg.GitHub.Owner, a.cfg.GitHub.Repo, a.cfg.GitHub.Token,
					a.cfg.GitHub.RequestsPerSecond, a.logger)
			}

			runner := analysis.NewRunner(
				repo,
				a.newHarvester(repo),
				a.newEnricher(),
				a.newBranchAnalyzer(repo),
				a.newBlameEngine(repo),
				a.newContributorAnalyzer(),
				patterns.NewRegistry(a.logger),
				a.patternConfig(),
				annotator,
				a.logger,
			)

			report, err := runner.Run(cmd.Context(), analysis.Options{
				RepoPath:     a.repoPath(cmd),
				Target:       target,
				MaxDepth:     maxDepth,
				Since:        since,
				Until:        until,
				WithBranches: !noBranch,
				WithBlame:    !noBlame && a.cfg.Blame.Enabled,
				WithPatterns: true,
			})
			if err != nil {
				return err
			}

			if save {
				store, serr := storage.Open(a.cfg.Storage.Driver, a.cfg.Storage.DSN, a.logger)
				if serr != nil {
					return serr
				}
				defer store.Close()
				if serr := store.SaveReport(cmd.Context(), report); serr != nil {
					return serr
				}
			}

			switch format {
			case "json":
				return output.WriteJSON(os.Stdout, report)
			case "yaml":
				return output.WriteYAML(os.Stdout, report)
			case "text":
				output.NewTerminal(os.Stdout).Render(report)
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "merge target branch (default: current)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "limit history depth (0 = unlimited)")
	cmd.Flags().StringVar(&since, "since", "", "only commits after this date")
	cmd.Flags().StringVar(&until, "until", "", "only commits before this date")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, yaml")
	cmd.Flags().BoolVar(&save, "save", false, "persist the report to storage")
	cmd.Flags().BoolVar(&noBranch, "no-branches", false, "skip the branch survey")
	cmd.Flags().BoolVar(&noBlame, "no-blame", false, "skip blame analysis")
	return cmd
}
