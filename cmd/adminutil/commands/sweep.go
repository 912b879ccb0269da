package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a maintenance sweep once",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "requests",
			Short: "Expire active requests past their deadline",
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := appCtx.Registry.SweepExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d request(s)\n", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "obligations",
			Short: "Flip overdue review obligations to blocking",
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := appCtx.Gate.SweepOverdue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d obligation(s) now blocking\n", n)
				return nil
			},
		},
	)
	return cmd
}
