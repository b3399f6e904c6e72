package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/ledger"
	"github.com/roach88/vaultledger/internal/model"
)

// NewDepositCommand creates the deposit command group.
func NewDepositCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Record on-chain deposits",
	}
	cmd.AddCommand(newDepositRecordCommand(opts))
	cmd.AddCommand(newDepositObserveCommand(opts))
	cmd.AddCommand(newDepositRejectCommand(opts))
	return cmd
}

func newDepositRecordCommand(opts *RootOptions) *cobra.Command {
	var (
		d      ledger.Deposit
		amount string
	)

	cmd := &cobra.Command{
		Use:   "record <owner>",
		Short: "Credit a confirmed deposit",
		Long: `Credit a confirmed on-chain deposit to the owner's vault. Recording the
same signature again returns the vault unchanged. When the owner has no vault
yet, --vault-address and --mint open one.

Example:
  vaultledger deposit record <owner> --signature <sig> --amount 1000 --slot 100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var err error
				d.Owner = args[0]
				if d.Amount, err = a.parseAmount("amount", amount); err != nil {
					return a.out.Fail("deposit record", err)
				}
				v, err := a.ledger.RecordDeposit(ctx, d)
				if err != nil {
					return a.out.Fail("deposit record", err)
				}
				return a.out.Render(v, func(w io.Writer) { a.writeVault(w, v) })
			})
		},
	}

	cmd.Flags().StringVar(&d.Signature, "signature", "", "transaction signature (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "deposited amount (required)")
	cmd.Flags().Int64Var(&d.Slot, "slot", 0, "confirmation slot")
	cmd.Flags().Int64Var(&d.BlockTime, "block-time", 0, "block time (unix seconds)")
	cmd.Flags().StringVar(&d.VaultAddress, "vault-address", "", "vault address, opens the vault if missing")
	cmd.Flags().StringVar(&d.TokenMint, "mint", "", "token mint, opens the vault if missing")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func newDepositObserveCommand(opts *RootOptions) *cobra.Command {
	var signature, amount string

	cmd := &cobra.Command{
		Use:   "observe <owner>",
		Short: "Track a deposit seen on-chain but not yet finalized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				n, err := a.parseAmount("amount", amount)
				if err != nil {
					return a.out.Fail("deposit observe", err)
				}
				rec, err := a.ledger.ObserveDeposit(ctx, args[0], signature, n)
				if err != nil {
					return a.out.Fail("deposit observe", err)
				}
				return a.out.Render(rec, func(w io.Writer) { a.writeTransaction(w, rec) })
			})
		},
	}

	cmd.Flags().StringVar(&signature, "signature", "", "transaction signature (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "deposited amount (required)")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func newDepositRejectCommand(opts *RootOptions) *cobra.Command {
	var signature, message string

	cmd := &cobra.Command{
		Use:   "reject <owner>",
		Short: "Mark an observed deposit as failed on-chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rec, err := a.ledger.RejectDeposit(ctx, args[0], signature, message)
				if err != nil {
					return a.out.Fail("deposit reject", err)
				}
				return a.out.Render(rec, func(w io.Writer) { a.writeTransaction(w, rec) })
			})
		},
	}

	cmd.Flags().StringVar(&signature, "signature", "", "transaction signature (required)")
	cmd.Flags().StringVar(&message, "error", "", "on-chain error message")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func (a *app) writeTransaction(w io.Writer, rec model.TransactionRecord) {
	fmt.Fprintf(w, "signature:  %s\n", rec.Signature)
	fmt.Fprintf(w, "type:       %s\n", rec.Type)
	fmt.Fprintf(w, "status:     %s\n", rec.Status)
	fmt.Fprintf(w, "owner:      %s\n", rec.Owner)
	fmt.Fprintf(w, "amount:     %s\n", a.amount(rec.Amount))
	if rec.Slot != 0 {
		fmt.Fprintf(w, "slot:       %d\n", rec.Slot)
	}
	if rec.Fee != 0 {
		fmt.Fprintf(w, "fee:        %s\n", a.amount(rec.Fee))
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(w, "error:      %s\n", rec.ErrorMessage)
	}
}
