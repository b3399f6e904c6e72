package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/model"
)

// NewEventsCommand creates the events command.
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	var since int64

	cmd := &cobra.Command{
		Use:   "events <owner>",
		Short: "Print an owner's event history in order",
		Long: `Print the owner's vault events in append order. Payloads are shown as
canonical JSON, the same bytes the store persists.

Example:
  vaultledger events <owner> --since 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				events := []model.VaultEvent{}
				for e, err := range a.ledger.Events(ctx, args[0], since) {
					if err != nil {
						return a.out.Fail("events", err)
					}
					events = append(events, e)
				}
				a.out.VerboseLog("%d event(s) after seq %d", len(events), since)

				return a.out.Render(events, func(w io.Writer) {
					for _, e := range events {
						payload, err := model.MarshalCanonical(e.Payload)
						if err != nil {
							payload = []byte(fmt.Sprintf("<%v>", err))
						}
						fmt.Fprintf(w, "%d %s %s %s\n", e.Seq, e.CreatedAt.UTC().Format(time.RFC3339), e.Type, payload)
					}
				})
			})
		},
	}

	cmd.Flags().Int64Var(&since, "since", 0, "only events with a greater seq")
	return cmd
}
