package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/ledger"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/tracker"
)

// ExpiryActor is the audit actor of tickets cancelled by the poller.
const ExpiryActor = "reconciler"

// PollerConfig tunes the scheduled reconciliation work.
type PollerConfig struct {
	// Schedule is a cron spec with seconds, or a descriptor like "@every 30s".
	Schedule string

	// TicketTTL is how long a ticket may stay locked without a signature.
	TicketTTL time.Duration

	// BatchSize bounds records fetched per run and signatures per chain call.
	BatchSize int

	// RPCRate and RPCBurst limit chain calls per second.
	RPCRate  float64
	RPCBurst int
}

// DefaultPollerConfig returns the settings used when none are configured.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Schedule:  "@every 30s",
		TicketTTL: 15 * time.Minute,
		BatchSize: 100,
		RPCRate:   10,
		RPCBurst:  5,
	}
}

// Poller runs reconciliation on a schedule.
type Poller struct {
	driver  *Driver
	ledger  *ledger.Ledger
	chain   ChainClient
	cfg     PollerConfig
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	cron    *cron.Cron
	running atomic.Bool
}

// NewPoller creates a Poller. A nil chain limits each run to ticket expiry
// and the consistency audit.
func NewPoller(d *Driver, chain ChainClient, cfg PollerConfig) *Poller {
	def := DefaultPollerConfig()
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.TicketTTL <= 0 {
		cfg.TicketTTL = def.TicketTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.RPCRate <= 0 {
		cfg.RPCRate = def.RPCRate
	}
	if cfg.RPCBurst <= 0 {
		cfg.RPCBurst = def.RPCBurst
	}

	p := &Poller{
		driver:  d,
		ledger:  d.ledger,
		chain:   chain,
		cfg:     cfg,
		logger:  d.logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPCRate), cfg.RPCBurst),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chain",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("chain circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

// Start schedules RunOnce. Runs never overlap; a tick that fires while the
// previous run is still busy is skipped.
func (p *Poller) Start(ctx context.Context) error {
	c := cron.New()
	if err := c.AddFunc(p.cfg.Schedule, func() { p.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", p.cfg.Schedule, err)
	}
	p.cron = c
	c.Start()
	p.logger.Info("reconciliation scheduled", "schedule", p.cfg.Schedule)
	return nil
}

// Stop halts the schedule. A run in progress finishes.
func (p *Poller) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("previous reconciliation still running, tick skipped")
		return
	}
	defer p.running.Store(false)

	if _, err := p.RunOnce(ctx); err != nil {
		p.logger.Error("reconciliation run failed", "error", err)
	}
}

// Summary counts what one run did.
type Summary struct {
	Settled       int `json:"settled"`
	Expired       int `json:"expired"`
	Discrepancies int `json:"discrepancies"`
	Inconsistent  int `json:"inconsistent"`
}

// RunOnce performs every reconciliation step once. A failing step does not
// stop the others; their errors are joined.
func (p *Poller) RunOnce(ctx context.Context) (Summary, error) {
	var (
		s    Summary
		errs []error
		err  error
	)
	if p.chain != nil {
		if s.Settled, err = p.PollPending(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Expired, err = p.ExpireTickets(ctx); err != nil {
		errs = append(errs, err)
	}
	if p.chain != nil {
		found, err := p.CheckBalances(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		s.Discrepancies = len(found)
	}
	if s.Inconsistent, err = p.AuditVaults(ctx); err != nil {
		errs = append(errs, err)
	}

	p.logger.Info("reconciliation run finished",
		"settled", s.Settled,
		"expired", s.Expired,
		"discrepancies", s.Discrepancies,
		"inconsistent", s.Inconsistent,
	)
	return s, errors.Join(errs...)
}

// PollPending asks the chain about pending transactions and settles the
// finalized ones. It returns how many were settled.
func (p *Poller) PollPending(ctx context.Context) (int, error) {
	if p.chain == nil {
		return 0, errors.New("poll pending: no chain client")
	}
	pending, err := p.ledger.PendingTransactions(ctx, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("poll pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sigs := make([]string, len(pending))
	for i, rec := range pending {
		sigs[i] = rec.Signature
	}
	statuses, err := guarded(ctx, p, func() ([]ChainStatus, error) {
		return p.chain.SignatureStatuses(ctx, sigs)
	})
	if err != nil {
		return 0, fmt.Errorf("poll pending: %w", err)
	}
	if len(statuses) != len(pending) {
		return 0, fmt.Errorf("poll pending: chain returned %d statuses for %d signatures", len(statuses), len(pending))
	}

	var (
		settled int
		errs    []error
	)
	for i, rec := range pending {
		st := statuses[i]
		if !st.Found || !st.Finalized {
			continue
		}
		if err := p.settle(ctx, rec, st); err != nil {
			p.logger.Error("settling transaction failed", "signature", rec.Signature, "owner", rec.Owner, "error", err)
			errs = append(errs, err)
			continue
		}
		settled++
	}
	return settled, errors.Join(errs...)
}

func (p *Poller) settle(ctx context.Context, rec model.TransactionRecord, st ChainStatus) error {
	switch rec.Type {
	case model.TxDeposit:
		if st.Err != "" {
			_, err := p.ledger.RejectDeposit(ctx, rec.Owner, rec.Signature, st.Err)
			return err
		}
		_, err := p.driver.NotifyDeposit(ctx, rec.Owner, rec.Signature, rec.Amount, st.Slot, st.BlockTime)
		return err
	case model.TxWithdraw:
		outcome := tracker.Outcome{
			Status:    model.TxConfirmed,
			Slot:      st.Slot,
			BlockTime: st.BlockTime,
			Fee:       st.Fee,
		}
		if st.Err != "" {
			outcome = tracker.Outcome{Status: model.TxFailed, ErrorMessage: st.Err}
		}
		_, err := p.driver.NotifyWithdrawalOutcome(ctx, rec.Signature, outcome)
		return err
	default:
		p.logger.Debug("pending transaction has no ledger effect", "signature", rec.Signature, "type", rec.Type)
		return nil
	}
}

// ExpireTickets cancels tickets left locked longer than the ticket TTL and
// returns how many it cancelled.
func (p *Poller) ExpireTickets(ctx context.Context) (int, error) {
	stale, err := p.ledger.StaleTickets(ctx, p.cfg.TicketTTL, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("expire tickets: %w", err)
	}

	var (
		expired int
		errs    []error
	)
	for _, t := range stale {
		_, err := p.ledger.CancelWithdrawal(ctx, t.Owner, t.ID, "ticket expired", ExpiryActor)
		switch {
		case err == nil:
			expired++
		case fault.IsConflict(err):
			// Submitted since it was listed.
			p.logger.Debug("ticket no longer expirable", "ticket_id", t.ID, "owner", t.Owner)
		default:
			errs = append(errs, fmt.Errorf("expire ticket %s: %w", t.ID, err))
		}
	}
	return expired, errors.Join(errs...)
}

// CheckBalances compares every vault's on-chain balance with its total
// balance and records mismatches. Nothing is repaired.
func (p *Poller) CheckBalances(ctx context.Context) ([]model.Discrepancy, error) {
	if p.chain == nil {
		return nil, errors.New("check balances: no chain client")
	}
	vaults, err := p.ledger.Vaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("check balances: %w", err)
	}

	found := []model.Discrepancy{}
	var errs []error
	for _, v := range vaults {
		onchain, err := guarded(ctx, p, func() (int64, error) {
			return p.chain.TokenBalance(ctx, v.VaultAddress)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("balance of %s: %w", v.VaultAddress, err))
			continue
		}
		if onchain == v.TotalBalance {
			continue
		}

		d, err := p.ledger.RecordDiscrepancy(ctx, v.Owner, onchain, v.TotalBalance)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.logger.Warn("balance discrepancy",
			"owner", v.Owner,
			"vault_address", v.VaultAddress,
			"onchain", onchain,
			"offchain", v.TotalBalance,
			"discrepancy", d.Discrepancy,
		)
		found = append(found, d)
	}
	return found, errors.Join(errs...)
}

// AuditVaults replays every vault's events against its stored balances and
// returns how many vaults failed.
func (p *Poller) AuditVaults(ctx context.Context) (int, error) {
	vaults, err := p.ledger.Vaults(ctx)
	if err != nil {
		return 0, fmt.Errorf("audit vaults: %w", err)
	}

	var (
		failed int
		errs   []error
	)
	for _, v := range vaults {
		report, err := p.ledger.Verify(ctx, v.Owner)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !report.OK() {
			failed++
		}
	}
	return failed, errors.Join(errs...)
}

// guarded runs a chain call under the rate limiter and circuit breaker. An
// open breaker or exhausted limiter surfaces as TransientError.
func guarded[T any](ctx context.Context, p *Poller, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.limiter.Wait(ctx); err != nil {
		return zero, fault.Transient("chain rate limit", err)
	}
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fault.Transient("chain unavailable", err)
		}
		return zero, err
	}
	return out.(T), nil
}
