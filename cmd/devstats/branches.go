package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devstats/devstats-go/internal/output"
)

func newBranchesCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "branches",
		Short: "Survey branches for merge status and deletability",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := a.newRepo(cmd)
			reports, err := a.newBranchAnalyzer(repo).Analyze(cmd.Context())
			if err != nil {
				return err
			}

			switch format {
			case "csv":
				return output.WriteBranchesCSV(os.Stdout, reports)
			case "text":
				output.NewTerminal(os.Stdout).Branches(reports)
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, csv")
	return cmd
}
