package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newEnginesCmd creates the 'engines' subcommand.
func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the registered search engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			a, err := sess.start(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range a.Registry().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
