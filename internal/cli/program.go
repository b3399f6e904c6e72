package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/model"
)

// NewProgramCommand creates the program allow-list command group.
func NewProgramCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "program",
		Short: "Manage programs allowed to lock collateral",
	}
	cmd.AddCommand(newProgramAddCommand(opts))
	cmd.AddCommand(newProgramRemoveCommand(opts))
	cmd.AddCommand(newProgramListCommand(opts))
	cmd.AddCommand(newProgramCheckCommand(opts))
	return cmd
}

func newProgramAddCommand(opts *RootOptions) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "add <program>",
		Short: "Authorize a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				p, err := a.gate.Add(ctx, args[0], actor)
				if err != nil {
					return a.out.Fail("program add", err)
				}
				return a.out.Render(p, func(w io.Writer) { writeProgram(w, p) })
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "who authorizes it (required)")
	return cmd
}

func newProgramRemoveCommand(opts *RootOptions) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "remove <program>",
		Short: "Revoke a program's authorization",
		Long: `Revoke a program's authorization. Collateral it already holds stays
locked; the program can no longer lock or unlock until it is re-added.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				p, err := a.gate.Remove(ctx, args[0], actor)
				if err != nil {
					return a.out.Fail("program remove", err)
				}
				return a.out.Render(p, func(w io.Writer) { writeProgram(w, p) })
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "who revokes it (required)")
	return cmd
}

func newProgramListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List allow-list entries, active and removed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				programs, err := a.gate.List(ctx)
				if err != nil {
					return a.out.Fail("program list", err)
				}
				return a.out.Render(programs, func(w io.Writer) {
					if len(programs) == 0 {
						fmt.Fprintln(w, "no programs")
						return
					}
					for _, p := range programs {
						writeProgram(w, p)
					}
				})
			})
		},
	}
}

func newProgramCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <program>",
		Short: "Report whether a program is currently authorized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				active, err := a.gate.IsActive(ctx, args[0])
				if err != nil {
					return a.out.Fail("program check", err)
				}
				data := map[string]any{"program": args[0], "active": active}
				return a.out.Render(data, func(w io.Writer) {
					if active {
						fmt.Fprintf(w, "%s authorized\n", args[0])
					} else {
						fmt.Fprintf(w, "%s not authorized\n", args[0])
					}
				})
			})
		},
	}
}

func writeProgram(w io.Writer, p model.AuthorizedProgram) {
	fmt.Fprintf(w, "%s %s added_by=%s", p.Program, p.Status, p.AddedBy)
	if p.RemovedBy != "" {
		fmt.Fprintf(w, " removed_by=%s", p.RemovedBy)
	}
	fmt.Fprintln(w)
}
