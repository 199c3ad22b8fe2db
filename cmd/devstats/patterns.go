package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devstats/devstats-go/internal/analysis"
	"github.com/devstats/devstats-go/internal/output"
	"github.com/devstats/devstats-go/internal/patterns"
)

func newPatternsCmd(a *app) *cobra.Command {
	var maxDepth int
	var listDetectors bool

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Run anomaly detectors over the repository history",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := patterns.NewRegistry(a.logger)
			if listDetectors {
				for _, name := range registry.Names() {
					fmt.Println(name)
				}
				return nil
			}

			repo := a.newRepo(cmd)
			runner := analysis.NewRunner(
				repo,
				a.newHarvester(repo),
				a.newEnricher(),
				a.newBranchAnalyzer(repo),
				a.newBlameEngine(repo),
				a.newContributorAnalyzer(),
				registry,
				a.patternConfig(),
				nil,
				a.logger,
			)
			report, err := runner.Run(cmd.Context(), analysis.Options{
				RepoPath:     a.repoPath(cmd),
				MaxDepth:     maxDepth,
				WithBlame:    a.cfg.Blame.Enabled,
				WithPatterns: true,
			})
			if err != nil {
				return err
			}
			output.NewTerminal(os.Stdout).Patterns(report.Patterns)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "limit history depth (0 = unlimited)")
	cmd.Flags().BoolVar(&listDetectors, "list", false, "list detectors and exit")
	return cmd
}
