package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/ledger"
)

// NewWithdrawCommand creates the withdraw command group.
func NewWithdrawCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Run the withdrawal lifecycle",
		Long: `Withdrawals lock funds first (request), bind the lock to an on-chain
transaction (submit), and settle when the transaction confirms or fails.
A ticket that never got a transaction can be cancelled to release its lock.`,
	}
	cmd.AddCommand(newWithdrawRequestCommand(opts))
	cmd.AddCommand(newWithdrawSubmitCommand(opts))
	cmd.AddCommand(newWithdrawConfirmCommand(opts))
	cmd.AddCommand(newWithdrawFailCommand(opts))
	cmd.AddCommand(newWithdrawCancelCommand(opts))
	return cmd
}

func newWithdrawRequestCommand(opts *RootOptions) *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "request <owner>",
		Short: "Lock funds for a withdrawal and issue a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				n, err := a.parseAmount("amount", amount)
				if err != nil {
					return a.out.Fail("withdraw request", err)
				}
				t, err := a.ledger.RequestWithdrawal(ctx, args[0], n)
				if err != nil {
					return a.out.Fail("withdraw request", err)
				}
				return a.out.Render(t, func(w io.Writer) { a.writeTicketLine(w, t) })
			})
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount to withdraw (required)")
	return cmd
}

func newWithdrawSubmitCommand(opts *RootOptions) *cobra.Command {
	var ticketID, signature string

	cmd := &cobra.Command{
		Use:   "submit <owner>",
		Short: "Bind a ticket to its on-chain transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				t, err := a.ledger.SubmitWithdrawal(ctx, args[0], ticketID, signature)
				if err != nil {
					return a.out.Fail("withdraw submit", err)
				}
				return a.out.Render(t, func(w io.Writer) { a.writeTicketLine(w, t) })
			})
		},
	}

	cmd.Flags().StringVar(&ticketID, "ticket", "", "ticket id (required)")
	cmd.Flags().StringVar(&signature, "signature", "", "transaction signature (required)")
	_ = cmd.MarkFlagRequired("ticket")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func newWithdrawConfirmCommand(opts *RootOptions) *cobra.Command {
	var (
		c      ledger.Confirmation
		amount string
	)

	cmd := &cobra.Command{
		Use:   "confirm <owner>",
		Short: "Settle a withdrawal confirmed on-chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var err error
				c.Owner = args[0]
				if c.Amount, err = a.parseAmount("amount", amount); err != nil {
					return a.out.Fail("withdraw confirm", err)
				}
				v, err := a.ledger.ConfirmWithdrawal(ctx, c)
				if err != nil {
					return a.out.Fail("withdraw confirm", err)
				}
				return a.out.Render(v, func(w io.Writer) { a.writeVault(w, v) })
			})
		},
	}

	cmd.Flags().StringVar(&c.Signature, "signature", "", "transaction signature (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "withdrawn amount (required)")
	cmd.Flags().Int64Var(&c.Slot, "slot", 0, "confirmation slot")
	cmd.Flags().Int64Var(&c.BlockTime, "block-time", 0, "block time (unix seconds)")
	cmd.Flags().Int64Var(&c.Fee, "fee", 0, "network fee in lamports")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func newWithdrawFailCommand(opts *RootOptions) *cobra.Command {
	var signature, message string

	cmd := &cobra.Command{
		Use:   "fail <owner>",
		Short: "Release the lock of a withdrawal that failed on-chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				v, err := a.ledger.FailWithdrawal(ctx, args[0], signature, message)
				if err != nil {
					return a.out.Fail("withdraw fail", err)
				}
				return a.out.Render(v, func(w io.Writer) { a.writeVault(w, v) })
			})
		},
	}

	cmd.Flags().StringVar(&signature, "signature", "", "transaction signature (required)")
	cmd.Flags().StringVar(&message, "error", "", "on-chain error message")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func newWithdrawCancelCommand(opts *RootOptions) *cobra.Command {
	var ticketID, reason, actor string

	cmd := &cobra.Command{
		Use:   "cancel <owner>",
		Short: "Cancel a ticket that was never submitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				t, err := a.ledger.CancelWithdrawal(ctx, args[0], ticketID, reason, actor)
				if err != nil {
					return a.out.Fail("withdraw cancel", err)
				}
				return a.out.Render(t, func(w io.Writer) { a.writeTicketLine(w, t) })
			})
		},
	}

	cmd.Flags().StringVar(&ticketID, "ticket", "", "ticket id (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the ticket is cancelled (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "who cancels it (required)")
	_ = cmd.MarkFlagRequired("ticket")
	return cmd
}
