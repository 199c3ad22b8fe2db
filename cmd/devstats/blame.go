package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/devstats/devstats-go/internal/models"
	"github.com/devstats/devstats-go/internal/output"
)

func newBlameCmd(a *app) *cobra.Command {
	var riskOnly bool

	cmd := &cobra.Command{
		Use:   "blame [path...]",
		Short: "Compute line ownership and bus factor per file",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := a.newRepo(cmd)
			engine := a.newBlameEngine(repo)

			var reports []models.FileBlameReport
			if len(args) > 0 {
				for _, path := range args {
					r, err := engine.BlameFile(cmd.Context(), path)
					if err != nil {
						return err
					}
					if r.NotBlameable {
						fmt.Fprintf(os.Stderr, "skipping %s: %s\n", path, r.Reason)
						continue
					}
					reports = append(reports, r)
				}
			} else {
				var err error
				reports, err = engine.BlameAll(cmd.Context())
				if err != nil {
					return err
				}
			}

			if riskOnly {
				filtered := reports[:0]
				for _, r := range reports {
					if !r.NotBlameable && r.BusFactor == 1 && r.TotalLines >= a.cfg.Blame.NoiseFloorLines {
						filtered = append(filtered, r)
					}
				}
				reports = filtered
			}
			sort.Slice(reports, func(i, j int) bool {
				if reports[i].BusFactor != reports[j].BusFactor {
					return reports[i].BusFactor < reports[j].BusFactor
				}
				return reports[i].TotalLines > reports[j].TotalLines
			})

			output.NewTerminal(os.Stdout).Blames(reports)
			return nil
		},
	}
	cmd.Flags().BoolVar(&riskOnly, "risk", false, "only single-owner files above the noise floor")
	return cmd
}
