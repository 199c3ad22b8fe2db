package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devstats/devstats-go/internal/ingest"
	"github.com/devstats/devstats-go/internal/output"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		maxDepth int
		since    string
		until    string
		author   string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Export classified commit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := a.newRepo(cmd)
			records, err := a.newHarvester(repo).Harvest(cmd.Context(), ingest.Options{
				MaxDepth: maxDepth,
				Since:    since,
				Until:    until,
				Author:   author,
			})
			if err != nil {
				return err
			}
			commits := a.newEnricher().Enrich(records)

			switch format {
			case "csv":
				return output.WriteCommitsCSV(os.Stdout, commits)
			case "text":
				for _, c := range commits {
					marker := " "
					if c.Partial {
						marker = "!"
					}
					ctype := c.ConventionalType
					if ctype == "" {
						ctype = "-"
					}
					fmt.Printf("%s %s  %-8s %-8s %-24s %s\n",
						marker, c.AbbrevSHA, ctype, c.Size, c.Author.Email, c.Subject)
				}
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "limit history depth (0 = unlimited)")
	cmd.Flags().StringVar(&since, "since", "", "only commits after this date")
	cmd.Flags().StringVar(&until, "until", "", "only commits before this date")
	cmd.Flags().StringVar(&author, "author", "", "filter by author")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, csv")
	return cmd
}
