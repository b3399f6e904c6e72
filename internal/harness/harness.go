package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/ledger"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
	"github.com/roach88/vaultledger/internal/testutil"
)

// Harness executes scenario steps against a ledger.
type Harness struct {
	store   *store.Store
	ledger  *ledger.Ledger
	aliases *aliases
	owners  []string // touched owner aliases, first-use order
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and id sequence, so identical scenarios produce identical traces.
//
// Execution flow:
// 1. Create fresh in-memory database and ledger
// 2. Execute setup steps (any failure aborts with an error)
// 3. Execute flow steps, checking each expect clause
// 4. Collect event histories and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	ids := testutil.NewSequenceIDGenerator()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{
		store: st,
		ledger: ledger.New(st,
			ledger.WithIDGenerator(ids),
			ledger.WithClock(clock),
			ledger.WithLogger(logger),
			ledger.WithRecorder(audit.NewRecorder(audit.NewStoreSink(st), ids, clock)),
		),
		aliases: newAliases(),
		logger:  logger,
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		if err := h.execute(ctx, step, result); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
	}

	for i, step := range scenario.Flow {
		if err := h.execute(ctx, step, result); err != nil {
			result.AddError(fmt.Sprintf("flow step %d (%s): %v", i, step.Op, err))
		}
	}

	if err := h.collectEvents(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to collect events: %w", err)
	}

	actx := &AssertionContext{
		Store:   st,
		Ledger:  h.ledger,
		Aliases: h.aliases,
		Ctx:     ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// execute runs one step, traces it, and checks its expect clause.
// The returned error describes an unmet expectation.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) error {
	op, ok := operations[step.Op]
	if !ok {
		return fmt.Errorf("unknown op %q", step.Op)
	}

	args := &stepArgs{raw: step.Args, aliases: h.aliases}
	ticketID, opErr := op(ctx, h.ledger, args)
	if args.err != nil {
		return args.err
	}

	ownerAlias, _ := step.Args["owner"].(string)
	event := TraceEvent{Op: step.Op, Owner: ownerAlias, Outcome: OutcomeOK}
	if opErr != nil {
		event.Outcome = string(fault.CodeOf(opErr))
		if event.Outcome == "" {
			return fmt.Errorf("unclassified error: %w", opErr)
		}
	}

	if ownerAlias != "" {
		h.touch(ownerAlias)
		b, err := h.ledger.Balance(ctx, h.aliases.resolve(ownerAlias))
		switch {
		case err == nil:
			event.Balance = &b
		case !fault.IsNotFound(err):
			return fmt.Errorf("read balance: %w", err)
		}
	}
	result.AddTrace(event)

	if step.As != "" && opErr == nil {
		if ticketID == "" {
			return fmt.Errorf("as %q: op %s returns no ticket", step.As, step.Op)
		}
		h.aliases.bind(step.As, ticketID)
	}

	h.logger.Info("step completed", "op", step.Op, "owner", ownerAlias, "outcome", event.Outcome)
	return checkExpect(step.Expect, event, opErr)
}

func checkExpect(expect *Expect, event TraceEvent, opErr error) error {
	want := OutcomeOK
	if expect != nil && expect.Error != "" {
		want = expect.Error
	}
	if event.Outcome != want {
		if opErr != nil {
			return fmt.Errorf("expected %s, got %s: %v", want, event.Outcome, opErr)
		}
		return fmt.Errorf("expected %s, got %s", want, event.Outcome)
	}

	if expect == nil || expect.Balance == nil {
		return nil
	}
	wantBalance := model.Balance{
		Total:     expect.Balance.Total,
		Locked:    expect.Balance.Locked,
		Available: expect.Balance.Available,
	}
	if event.Balance == nil {
		return fmt.Errorf("expected balance %+v, owner has no vault", wantBalance)
	}
	if *event.Balance != wantBalance {
		return fmt.Errorf("expected balance %+v, got %+v", wantBalance, *event.Balance)
	}
	return nil
}

func (h *Harness) touch(ownerAlias string) {
	for _, o := range h.owners {
		if o == ownerAlias {
			return
		}
	}
	h.owners = append(h.owners, ownerAlias)
}

// collectEvents stores each touched vault's aliased history on result.
func (h *Harness) collectEvents(ctx context.Context, result *Result) error {
	for _, alias := range h.owners {
		owner := h.aliases.resolve(alias)
		records := []EventRecord{}
		for e, err := range h.ledger.Events(ctx, owner, 0) {
			if err != nil {
				return err
			}
			records = append(records, EventRecord{
				Type:    string(e.Type),
				Payload: h.aliases.aliasPayload(e.Payload),
			})
		}
		if len(records) > 0 {
			result.Events[alias] = records
		}
	}
	return nil
}
