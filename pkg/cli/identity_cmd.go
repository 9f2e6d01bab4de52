package cli

import (
	"github.com/spf13/cobra"
)

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Resolve and reconcile the caller's identity",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var identity map[string]any
			if err := newAPIClient(opts).do("GET", "/user", nil, &identity); err != nil {
				return err
			}
			return printJSON(identity)
		},
	}
}

func newIdentityCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect identity records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <identity-id>",
		Short: "Fetch one identity record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var identity map[string]any
			if err := newAPIClient(opts).do("GET", "/identities/"+args[0], nil, &identity); err != nil {
				return err
			}
			return printJSON(identity)
		},
	})

	return cmd
}
