package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devstats/devstats-go/internal/config"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the GitHub token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Store a GitHub token in the system keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print("GitHub token: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			if len(raw) == 0 {
				return fmt.Errorf("empty token")
			}
			if err := config.StoreToken(string(raw)); err != nil {
				return err
			}
			fmt.Println("Token stored.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a token is configured",
		Run: func(cmd *cobra.Command, args []string) {
			if a.cfg.GitHub.Token != "" {
				fmt.Println("Token configured.")
			} else {
				fmt.Println("No token configured.")
			}
		},
	})
	return cmd
}
