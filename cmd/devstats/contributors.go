package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/devstats/devstats-go/internal/ingest"
	"github.com/devstats/devstats-go/internal/models"
	"github.com/devstats/devstats-go/internal/output"
)

func newContributorsCmd(a *app) *cobra.Command {
	var withBlame bool
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "contributors",
		Short: "Resolve author identities into contributor profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := a.newRepo(cmd)
			records, err := a.newHarvester(repo).Harvest(cmd.Context(), ingest.Options{MaxDepth: maxDepth})
			if err != nil {
				return err
			}
			enricher := a.newEnricher()
			commits := enricher.Enrich(records)

			var blames []models.FileBlameReport
			if withBlame {
				blames, err = a.newBlameEngine(repo).BlameAll(cmd.Context())
				if err != nil {
					return err
				}
			}

			profiles := a.newContributorAnalyzer().Analyze(
				commits, blames, enricher.MaxStreakDays(commits))
			output.NewTerminal(os.Stdout).Contributors(profiles)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withBlame, "survival", false, "compute survival rates (runs blame on every file)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "limit history depth (0 = unlimited)")
	return cmd
}
