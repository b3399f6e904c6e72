package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/reconcile"
)

// RunOptions holds flags for the reconcile run command.
type RunOptions struct {
	*RootOptions
	Once     bool
	Schedule string
}

// NewReconcileCommand creates the reconcile command group.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Scheduled ledger maintenance",
	}
	cmd.AddCommand(NewRunCommand(rootOpts))
	return cmd
}

// NewRunCommand creates the reconcile run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Expire stale tickets and audit vault consistency",
		Long: `Run reconciliation on the configured cron schedule until interrupted.

Each run cancels withdrawal tickets that stayed locked longer than
reconcile.ticket_ttl and replays every vault's events against its stored
balances, logging any inconsistency at ERROR.

Example:
  vaultledger reconcile run --db ./ledger.db
  vaultledger reconcile run --once --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
				return runReconcile(ctx, opts, a, cmd)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single pass and exit")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "cron schedule (overrides reconcile.schedule)")

	return cmd
}

func runReconcile(parentCtx context.Context, opts *RunOptions, a *app, cmd *cobra.Command) error {
	rc := a.cfg.Reconcile
	cfg := reconcile.PollerConfig{
		Schedule:  rc.Schedule,
		TicketTTL: rc.TicketTTL.Std(),
		BatchSize: rc.BatchSize,
		RPCRate:   rc.RPCRate,
		RPCBurst:  rc.RPCBurst,
	}
	if opts.Schedule != "" {
		cfg.Schedule = opts.Schedule
	}
	poller := reconcile.NewPoller(a.driver(), nil, cfg)

	if opts.Once {
		summary, err := poller.RunOnce(parentCtx)
		if err != nil {
			return a.out.Fail("reconcile run", err)
		}
		if err := a.out.Render(summary, func(w io.Writer) {
			fmt.Fprintf(w, "expired: %d\n", summary.Expired)
			fmt.Fprintf(w, "inconsistent: %d\n", summary.Inconsistent)
		}); err != nil {
			return err
		}
		if summary.Inconsistent > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d vault(s) inconsistent", summary.Inconsistent))
		}
		return nil
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if err := poller.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start reconciler", err)
	}
	slog.Info("reconciler started", "db", a.cfg.Database, "schedule", cfg.Schedule)
	fmt.Fprintln(cmd.OutOrStdout(), "Reconciler started. Press Ctrl-C to stop.")

	<-ctx.Done()
	poller.Stop()

	slog.Info("reconciler stopped gracefully")
	return nil
}
