package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// NewAdjustCommand creates the adjust command.
func NewAdjustCommand(opts *RootOptions) *cobra.Command {
	var delta, reason, actor string

	cmd := &cobra.Command{
		Use:   "adjust <owner>",
		Short: "Apply an audited manual balance correction",
		Long: `Apply a signed correction to the owner's total and available balances.
The correction is recorded as an adjustment event and an audit entry.

Example:
  vaultledger adjust <owner> --delta=-50 --reason "double credit" --actor ops`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				n, err := a.parseAmount("delta", delta)
				if err != nil {
					return a.out.Fail("adjust", err)
				}
				v, err := a.ledger.Adjust(ctx, args[0], n, reason, actor)
				if err != nil {
					return a.out.Fail("adjust", err)
				}
				return a.out.Render(v, func(w io.Writer) { a.writeVault(w, v) })
			})
		},
	}

	cmd.Flags().StringVar(&delta, "delta", "", "signed correction, e.g. --delta=-50 (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the correction is made (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "who makes it (required)")
	return cmd
}
