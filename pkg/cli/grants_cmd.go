package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGrantsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Inspect and replace resource authorizations",
	}

	cmd.AddCommand(newGrantsListCmd(opts))
	cmd.AddCommand(newGrantsSetCmd(opts))
	return cmd
}

func newGrantsListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <resource-id>",
		Short: "List the current subject sets per mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var grants map[string]any
			if err := newAPIClient(opts).do("GET", "/resources/"+args[0]+"/grants", nil, &grants); err != nil {
				return err
			}
			return printJSON(grants)
		},
	}
}

func newGrantsSetCmd(opts *globalOptions) *cobra.Command {
	var (
		read  []string
		write []string
	)

	cmd := &cobra.Command{
		Use:   "set <resource-id>",
		Short: "Replace subject sets for the given modes (admin only)",
		Long: `Replace the full subject set per mode. Subjects use their token form:
user:<identity-id> or role:<domain>#<role>. A mode not passed is left
untouched; passing an empty value clears that mode.`,
		Example: `  authctl grants set sub:42 \
      --read user:0198... \
      --write user:0198... --write 'role:d.edu#submitter'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			if cmd.Flags().Changed("read") {
				body["read"] = read
			}
			if cmd.Flags().Changed("write") {
				body["write"] = write
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to do: pass --read and/or --write")
			}

			if err := newAPIClient(opts).do("PUT", "/resources/"+args[0]+"/grants", body, nil); err != nil {
				return err
			}
			fmt.Printf("grants committed for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&read, "read", nil, "Read-mode subject token (repeatable)")
	cmd.Flags().StringArrayVar(&write, "write", nil, "Write-mode subject token (repeatable)")
	return cmd
}
