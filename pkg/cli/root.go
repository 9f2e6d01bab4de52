// Package cli implements the authctl command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Identity and authorization service CLI",
		Long:          "Command-line interface for the authbridge identity and grant API.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Precedence: flag > env > default.
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("AUTHBRIDGE_HOST"); v != "" {
					opts.host = v
				}
			}
			if !cmd.Flags().Changed("token") {
				if v := os.Getenv("AUTHBRIDGE_TOKEN"); v != "" {
					opts.token = v
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.host, "host", "http://localhost:8080", "API host URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token for authentication")

	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newWhoamiCmd(opts))
	rootCmd.AddCommand(newIdentityCmd(opts))
	rootCmd.AddCommand(newGrantsCmd(opts))

	return rootCmd
}

type globalOptions struct {
	host  string
	token string
}
