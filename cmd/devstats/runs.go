package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devstats/devstats-go/internal/storage"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(a.cfg.Storage.Driver, a.cfg.Storage.DSN, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tREPO\tTARGET\tSTARTED\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.RunID, r.RepoPath, r.TargetBranch,
					r.StartedAt.Format(time.RFC3339),
					time.Duration(r.DurationMS)*time.Millisecond)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max runs to list")
	return cmd
}
