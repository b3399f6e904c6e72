package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/eventlog"
	"github.com/roach88/vaultledger/internal/model"
)

// NewVaultCommand creates the vault command group.
func NewVaultCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Open and inspect vaults",
	}
	cmd.AddCommand(newVaultOpenCommand(opts))
	cmd.AddCommand(newVaultBalanceCommand(opts))
	cmd.AddCommand(newVaultShowCommand(opts))
	cmd.AddCommand(newVaultListCommand(opts))
	cmd.AddCommand(newVaultTVLCommand(opts))
	cmd.AddCommand(newVaultVerifyCommand(opts))
	cmd.AddCommand(newVaultAuditCommand(opts))
	return cmd
}

func newVaultOpenCommand(opts *RootOptions) *cobra.Command {
	var vaultAddress, tokenMint string

	cmd := &cobra.Command{
		Use:   "open <owner>",
		Short: "Open a vault, or return the existing one",
		Long: `Open the vault for an owner. Opening is idempotent: repeating it with the
same vault address and mint returns the existing vault unchanged.

Example:
  vaultledger vault open <owner> --vault-address <addr> --mint <mint>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				v, err := a.ledger.OpenOrGet(ctx, args[0], vaultAddress, tokenMint)
				if err != nil {
					return a.out.Fail("vault open", err)
				}
				return a.out.Render(v, func(w io.Writer) { a.writeVault(w, v) })
			})
		},
	}

	cmd.Flags().StringVar(&vaultAddress, "vault-address", "", "on-chain vault token account (required)")
	cmd.Flags().StringVar(&tokenMint, "mint", "", "token mint (required)")
	_ = cmd.MarkFlagRequired("vault-address")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func newVaultBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <owner>",
		Short: "Show the committed balance triple",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				b, err := a.ledger.Balance(ctx, args[0])
				if err != nil {
					return a.out.Fail("vault balance", err)
				}
				return a.out.Render(b, func(w io.Writer) {
					fmt.Fprintf(w, "total:     %s\n", a.amount(b.Total))
					fmt.Fprintf(w, "locked:    %s\n", a.amount(b.Locked))
					fmt.Fprintf(w, "available: %s\n", a.amount(b.Available))
				})
			})
		},
	}
}

// vaultDetail is a vault with its open tickets and collateral holders.
type vaultDetail struct {
	Vault      model.Vault              `json:"vault"`
	Tickets    []model.WithdrawalTicket `json:"tickets"`
	Collateral []model.CollateralLock   `json:"collateral"`
}

func newVaultShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <owner>",
		Short: "Show a vault with its tickets and collateral locks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var (
					d   vaultDetail
					err error
				)
				if d.Vault, err = a.ledger.Vault(ctx, args[0]); err != nil {
					return a.out.Fail("vault show", err)
				}
				if d.Tickets, err = a.ledger.Tickets(ctx, args[0]); err != nil {
					return a.out.Fail("vault show", err)
				}
				if d.Collateral, err = a.ledger.CollateralLocks(ctx, args[0]); err != nil {
					return a.out.Fail("vault show", err)
				}
				return a.out.Render(d, func(w io.Writer) {
					a.writeVault(w, d.Vault)
					for _, t := range d.Tickets {
						fmt.Fprint(w, "ticket:     ")
						a.writeTicketLine(w, t)
					}
					for _, c := range d.Collateral {
						fmt.Fprintf(w, "collateral: %s %s\n", c.Program, a.amount(c.Amount))
					}
				})
			})
		},
	}
}

func newVaultListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				vaults, err := a.ledger.Vaults(ctx)
				if err != nil {
					return a.out.Fail("vault list", err)
				}
				return a.out.Render(vaults, func(w io.Writer) {
					if len(vaults) == 0 {
						fmt.Fprintln(w, "no vaults")
						return
					}
					for _, v := range vaults {
						fmt.Fprintf(w, "%s total=%s locked=%s available=%s\n",
							v.Owner, a.amount(v.TotalBalance), a.amount(v.LockedBalance), a.amount(v.AvailableBalance))
					}
				})
			})
		},
	}
}

func newVaultTVLCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tvl",
		Short: "Show the sum of all vault totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				tvl, err := a.ledger.TotalValueLocked(ctx)
				if err != nil {
					return a.out.Fail("vault tvl", err)
				}
				data := map[string]int64{"total_value_locked": tvl}
				return a.out.Render(data, func(w io.Writer) {
					fmt.Fprintf(w, "total value locked: %s\n", a.amount(tvl))
				})
			})
		},
	}
}

func newVaultVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [owner]",
		Short: "Replay event history against stored balances",
		Long: `Replay each vault's events and compare the result with the stored balance
row. Without an owner every vault is checked. Exits 1 when any vault is
inconsistent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var owners []string
				if len(args) == 1 {
					owners = args
				} else {
					vaults, err := a.ledger.Vaults(ctx)
					if err != nil {
						return a.out.Fail("vault verify", err)
					}
					for _, v := range vaults {
						owners = append(owners, v.Owner)
					}
				}

				reports := make([]eventlog.Report, 0, len(owners))
				failed := 0
				for _, owner := range owners {
					r, err := a.ledger.Verify(ctx, owner)
					if err != nil {
						return a.out.Fail("vault verify", err)
					}
					if !r.OK() {
						failed++
					}
					reports = append(reports, r)
				}

				if err := a.out.Render(reports, func(w io.Writer) {
					for _, r := range reports {
						if r.OK() {
							fmt.Fprintf(w, "%s ok (%d events)\n", r.Owner, r.Replayed.Events)
							continue
						}
						fmt.Fprintf(w, "%s INCONSISTENT\n", r.Owner)
						for _, issue := range r.Issues {
							fmt.Fprintf(w, "  - %s\n", issue)
						}
					}
				}); err != nil {
					return err
				}
				if failed > 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("%d of %d vault(s) inconsistent", failed, len(reports)))
				}
				return nil
			})
		},
	}
}

func newVaultAuditCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit [target]",
		Short: "List audit entries for an owner or program",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				entries, err := a.ledger.AuditTrail(ctx, target, limit)
				if err != nil {
					return a.out.Fail("vault audit", err)
				}
				return a.out.Render(entries, func(w io.Writer) {
					for _, e := range entries {
						fmt.Fprintf(w, "%s %s %s by %s\n", e.CreatedAt.UTC().Format(time.RFC3339), e.Action, e.Target, e.Actor)
					}
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum entries")
	return cmd
}

func (a *app) writeVault(w io.Writer, v model.Vault) {
	fmt.Fprintf(w, "owner:      %s\n", v.Owner)
	fmt.Fprintf(w, "vault:      %s\n", v.VaultAddress)
	fmt.Fprintf(w, "mint:       %s\n", v.TokenMint)
	fmt.Fprintf(w, "total:      %s\n", a.amount(v.TotalBalance))
	fmt.Fprintf(w, "locked:     %s\n", a.amount(v.LockedBalance))
	fmt.Fprintf(w, "available:  %s\n", a.amount(v.AvailableBalance))
	fmt.Fprintf(w, "deposited:  %s\n", a.amount(v.TotalDeposited))
	fmt.Fprintf(w, "withdrawn:  %s\n", a.amount(v.TotalWithdrawn))
	fmt.Fprintf(w, "version:    %d\n", v.Version)
}

func (a *app) writeTicketLine(w io.Writer, t model.WithdrawalTicket) {
	fmt.Fprintf(w, "%s %s %s", t.ID, t.Status, a.amount(t.Amount))
	if t.Signature != "" {
		fmt.Fprintf(w, " %s", t.Signature)
	}
	fmt.Fprintln(w)
}
