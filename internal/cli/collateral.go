package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/model"
)

// NewCollateralCommand creates the collateral command group.
func NewCollateralCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collateral",
		Short: "Lock and release collateral for authorized programs",
	}
	cmd.AddCommand(newCollateralCommand(opts, "lock", "Lock available funds as program collateral"))
	cmd.AddCommand(newCollateralCommand(opts, "unlock", "Release collateral held by a program"))
	return cmd
}

func newCollateralCommand(opts *RootOptions, verb, short string) *cobra.Command {
	var program, amount string

	cmd := &cobra.Command{
		Use:   verb + " <owner>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := "collateral " + verb
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				n, err := a.parseAmount("amount", amount)
				if err != nil {
					return a.out.Fail(op, err)
				}

				var v model.Vault
				if verb == "lock" {
					v, err = a.ledger.LockCollateral(ctx, args[0], program, n)
				} else {
					v, err = a.ledger.UnlockCollateral(ctx, args[0], program, n)
				}
				if err != nil {
					return a.out.Fail(op, err)
				}
				return a.out.Render(v, func(w io.Writer) { a.writeVault(w, v) })
			})
		},
	}

	cmd.Flags().StringVar(&program, "program", "", "authorized program address (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "collateral amount (required)")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}
