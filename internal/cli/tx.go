package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/model"
)

// NewTxCommand creates the tx command group.
func NewTxCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Inspect tracked on-chain transactions",
	}
	cmd.AddCommand(newTxShowCommand(opts))
	cmd.AddCommand(newTxHistoryCommand(opts))
	cmd.AddCommand(newTxPendingCommand(opts))
	return cmd
}

func newTxShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <signature>",
		Short: "Show one transaction record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rec, err := a.ledger.Transaction(ctx, args[0])
				if err != nil {
					return a.out.Fail("tx show", err)
				}
				return a.out.Render(rec, func(w io.Writer) { a.writeTransaction(w, rec) })
			})
		},
	}
}

func newTxHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history <owner>",
		Short: "List an owner's transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				recs, err := a.ledger.History(ctx, args[0], limit, offset)
				if err != nil {
					return a.out.Fail("tx history", err)
				}
				return a.out.Render(recs, func(w io.Writer) { a.writeTransactions(w, recs) })
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	return cmd
}

func newTxPendingCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List transactions still awaiting an on-chain outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				recs, err := a.ledger.PendingTransactions(ctx, limit)
				if err != nil {
					return a.out.Fail("tx pending", err)
				}
				return a.out.Render(recs, func(w io.Writer) { a.writeTransactions(w, recs) })
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum records")
	return cmd
}

func (a *app) writeTransactions(w io.Writer, recs []model.TransactionRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no transactions")
		return
	}
	for _, rec := range recs {
		fmt.Fprintf(w, "%s %s %s %s\n", rec.Signature, rec.Type, rec.Status, a.amount(rec.Amount))
	}
}
