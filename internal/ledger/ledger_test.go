package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
	"github.com/roach88/vaultledger/internal/testutil"
)

func newLedger(t *testing.T, opts ...Option) (*store.Store, *Ledger) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ids := testutil.NewSequenceIDGenerator()
	clock := testutil.NewDeterministicClock()
	rec := audit.NewRecorder(audit.NewStoreSink(s), ids, clock)
	opts = append([]Option{WithIDGenerator(ids), WithClock(clock), WithRecorder(rec)}, opts...)
	return s, New(s, opts...)
}

// funded opens OwnerA's vault with one confirmed deposit of amount.
func funded(t *testing.T, l *Ledger, amount int64) model.Vault {
	t.Helper()
	v, err := l.RecordDeposit(context.Background(), Deposit{
		Owner:        testutil.OwnerA,
		Signature:    testutil.Sig1,
		Amount:       amount,
		Slot:         100,
		BlockTime:    1700000000,
		VaultAddress: testutil.VaultA,
		TokenMint:    testutil.Mint,
	})
	require.NoError(t, err)
	return v
}

func requireBalance(t *testing.T, l *Ledger, owner string, total, locked, available int64) {
	t.Helper()
	b, err := l.Balance(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, model.Balance{Total: total, Locked: locked, Available: available}, b)
}

func requireConsistent(t *testing.T, l *Ledger, owner string) {
	t.Helper()
	report, err := l.Verify(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, report.Issues)
}

func eventTypes(t *testing.T, l *Ledger, owner string) []model.EventType {
	t.Helper()
	var types []model.EventType
	for e, err := range l.Events(context.Background(), owner, 0) {
		require.NoError(t, err)
		types = append(types, e.Type)
	}
	return types
}

func TestOpenOrGet_Idempotent(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()

	v1, err := l.OpenOrGet(ctx, testutil.OwnerA, testutil.VaultA, testutil.Mint)
	require.NoError(t, err)
	assert.Equal(t, model.Balance{}, v1.Balance())

	v2, err := l.OpenOrGet(ctx, testutil.OwnerA, testutil.VaultA, testutil.Mint)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, v2.ID)
}

func TestOpenOrGet_Conflicts(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()

	_, err := l.OpenOrGet(ctx, testutil.OwnerA, testutil.VaultA, testutil.Mint)
	require.NoError(t, err)

	tests := []struct {
		name  string
		owner string
		vault string
		mint  string
	}{
		{"different vault address", testutil.OwnerA, testutil.VaultB, testutil.Mint},
		{"different mint", testutil.OwnerA, testutil.VaultA, testutil.VaultC},
		{"vault address of another owner", testutil.OwnerB, testutil.VaultA, testutil.Mint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.OpenOrGet(ctx, tt.owner, tt.vault, tt.mint)
			assert.True(t, fault.IsConflict(err), "got %v", err)
		})
	}
}

func TestOpenOrGet_Validation(t *testing.T) {
	_, l := newLedger(t)

	_, err := l.OpenOrGet(context.Background(), "not-base58!", testutil.VaultA, testutil.Mint)
	assert.True(t, fault.IsValidation(err), "got %v", err)
}

// Scenario A: new vault, deposit 1000.
func TestScenarioA_Deposit(t *testing.T) {
	_, l := newLedger(t)

	v := funded(t, l, 1000)
	assert.Equal(t, model.Balance{Total: 1000, Locked: 0, Available: 1000}, v.Balance())
	assert.Equal(t, int64(1000), v.TotalDeposited)

	rec, err := l.Transaction(context.Background(), testutil.Sig1)
	require.NoError(t, err)
	assert.Equal(t, model.TxConfirmed, rec.Status)
	assert.Equal(t, int64(100), rec.Slot)

	assert.Equal(t, []model.EventType{model.EventDeposit}, eventTypes(t, l, testutil.OwnerA))
	requireConsistent(t, l, testutil.OwnerA)
}

// Scenario B: from A, request a withdrawal of 300.
func TestScenarioB_RequestWithdrawal(t *testing.T) {
	_, l := newLedger(t)
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(context.Background(), testutil.OwnerA, 300)
	require.NoError(t, err)
	assert.Equal(t, model.TicketLocked, ticket.Status)
	assert.Equal(t, int64(300), ticket.Amount)

	requireBalance(t, l, testutil.OwnerA, 1000, 300, 700)
	assert.Equal(t, []model.EventType{model.EventDeposit, model.EventLock}, eventTypes(t, l, testutil.OwnerA))
	requireConsistent(t, l, testutil.OwnerA)
}

// Scenario C: from B, the withdrawal confirms with fee 5.
func TestScenarioC_ConfirmWithdrawal(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)

	v, err := l.ConfirmWithdrawal(ctx, Confirmation{
		Owner:     testutil.OwnerA,
		Signature: testutil.Sig2,
		Amount:    300,
		Slot:      120,
		BlockTime: 1700000100,
		Fee:       5,
	})
	require.NoError(t, err)
	assert.Equal(t, model.Balance{Total: 700, Locked: 0, Available: 700}, v.Balance())
	assert.Equal(t, int64(300), v.TotalWithdrawn)

	rec, err := l.Transaction(ctx, testutil.Sig2)
	require.NoError(t, err)
	assert.Equal(t, model.TxConfirmed, rec.Status)
	assert.Equal(t, int64(5), rec.Fee)

	got, err := l.Ticket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketConfirmed, got.Status)

	assert.Equal(t, []model.EventType{
		model.EventDeposit, model.EventLock, model.EventWithdrawRequested, model.EventWithdrawConfirmed,
	}, eventTypes(t, l, testutil.OwnerA))
	requireConsistent(t, l, testutil.OwnerA)
}

// Scenario D: from B, the withdrawal fails on-chain.
func TestScenarioD_FailWithdrawal(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)

	v, err := l.FailWithdrawal(ctx, testutil.OwnerA, testutil.Sig2, "slippage")
	require.NoError(t, err)
	assert.Equal(t, model.Balance{Total: 1000, Locked: 0, Available: 1000}, v.Balance())

	rec, err := l.Transaction(ctx, testutil.Sig2)
	require.NoError(t, err)
	assert.Equal(t, model.TxFailed, rec.Status)
	assert.Equal(t, "slippage", rec.ErrorMessage)

	got, err := l.Ticket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketFailed, got.Status)
	requireConsistent(t, l, testutil.OwnerA)
}

// Scenario E: two concurrent withdrawals of 700 against 1000 available.
func TestScenarioE_ConcurrentWithdrawals(t *testing.T) {
	_, l := newLedger(t)
	funded(t, l, 1000)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = l.RequestWithdrawal(context.Background(), testutil.OwnerA, 700)
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case fault.IsInsufficientFunds(err):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	requireBalance(t, l, testutil.OwnerA, 1000, 700, 300)
	requireConsistent(t, l, testutil.OwnerA)
}

func TestRecordDeposit_Idempotent(t *testing.T) {
	_, l := newLedger(t)
	funded(t, l, 1000)

	v, err := l.RecordDeposit(context.Background(), Deposit{
		Owner:     testutil.OwnerA,
		Signature: testutil.Sig1,
		Amount:    1000,
		Slot:      100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v.TotalBalance)
	assert.Equal(t, int64(1000), v.TotalDeposited)
	assert.Len(t, eventTypes(t, l, testutil.OwnerA), 1)
}

func TestRecordDeposit_Rejections(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	tests := []struct {
		name  string
		dep   Deposit
		check func(error) bool
	}{
		{
			name:  "zero amount",
			dep:   Deposit{Owner: testutil.OwnerA, Signature: testutil.Sig2, Amount: 0},
			check: fault.IsValidation,
		},
		{
			name:  "malformed signature",
			dep:   Deposit{Owner: testutil.OwnerA, Signature: "abc", Amount: 10},
			check: fault.IsValidation,
		},
		{
			name:  "unknown owner without vault address",
			dep:   Deposit{Owner: testutil.OwnerB, Signature: testutil.Sig2, Amount: 10},
			check: fault.IsValidation,
		},
		{
			name:  "same signature different amount",
			dep:   Deposit{Owner: testutil.OwnerA, Signature: testutil.Sig1, Amount: 999},
			check: fault.IsConflict,
		},
		{
			name: "same signature different owner",
			dep: Deposit{
				Owner: testutil.OwnerB, Signature: testutil.Sig1, Amount: 1000,
				VaultAddress: testutil.VaultB, TokenMint: testutil.Mint,
			},
			check: fault.IsConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.RecordDeposit(ctx, tt.dep)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	requireBalance(t, l, testutil.OwnerA, 1000, 0, 1000)
}

func TestRecordDeposit_FailedSignatureConflicts(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 100)
	require.NoError(t, err)
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)
	_, err = l.FailWithdrawal(ctx, testutil.OwnerA, testutil.Sig2, "expired")
	require.NoError(t, err)

	_, err = l.RecordDeposit(ctx, Deposit{Owner: testutil.OwnerA, Signature: testutil.Sig2, Amount: 100})
	assert.True(t, fault.IsConflict(err), "got %v", err)
	requireBalance(t, l, testutil.OwnerA, 1000, 0, 1000)
}

func TestObserveDeposit_ThenRecord(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	rec, err := l.ObserveDeposit(ctx, testutil.OwnerA, testutil.Sig3, 250)
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, rec.Status)
	requireBalance(t, l, testutil.OwnerA, 1000, 0, 1000)

	again, err := l.ObserveDeposit(ctx, testutil.OwnerA, testutil.Sig3, 250)
	require.NoError(t, err)
	assert.Equal(t, rec, again)

	pending, err := l.PendingTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, testutil.Sig3, pending[0].Signature)

	v, err := l.RecordDeposit(ctx, Deposit{Owner: testutil.OwnerA, Signature: testutil.Sig3, Amount: 250, Slot: 101})
	require.NoError(t, err)
	assert.Equal(t, int64(1250), v.TotalBalance)

	got, err := l.Transaction(ctx, testutil.Sig3)
	require.NoError(t, err)
	assert.Equal(t, model.TxConfirmed, got.Status)
	requireConsistent(t, l, testutil.OwnerA)
}

func TestObserveDeposit_RequiresVault(t *testing.T) {
	_, l := newLedger(t)

	_, err := l.ObserveDeposit(context.Background(), testutil.OwnerA, testutil.Sig1, 10)
	assert.True(t, fault.IsValidation(err), "got %v", err)
}

func TestRequestWithdrawal_InsufficientFunds(t *testing.T) {
	_, l := newLedger(t)
	funded(t, l, 1000)

	_, err := l.RequestWithdrawal(context.Background(), testutil.OwnerA, 1001)
	require.True(t, fault.IsInsufficientFunds(err), "got %v", err)
	requireBalance(t, l, testutil.OwnerA, 1000, 0, 1000)
	assert.Len(t, eventTypes(t, l, testutil.OwnerA), 1)
}

func TestSubmitWithdrawal_Idempotent(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)

	first, err := l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)
	second, err := l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A different signature for an already submitted ticket is rejected.
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig3)
	assert.True(t, fault.IsConflict(err), "got %v", err)
}

func TestSubmitWithdrawal_StampsVault(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)
	before, err := l.Vault(ctx, testutil.OwnerA)
	require.NoError(t, err)

	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)

	after, err := l.Vault(ctx, testutil.OwnerA)
	require.NoError(t, err)
	assert.Equal(t, before.Balance(), after.Balance())
	assert.Equal(t, before.Version+1, after.Version)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestSubmitWithdrawal_SignatureInUse(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)

	// Sig1 is the deposit.
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig1)
	assert.True(t, fault.IsDuplicateSignature(err), "got %v", err)

	got, err := l.Ticket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketLocked, got.Status)
}

func TestConfirmWithdrawal_Rejections(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)

	t.Run("partial amount", func(t *testing.T) {
		_, err := l.ConfirmWithdrawal(ctx, Confirmation{Owner: testutil.OwnerA, Signature: testutil.Sig2, Amount: 200})
		assert.True(t, fault.IsInvalidState(err), "got %v", err)
	})
	t.Run("never registered", func(t *testing.T) {
		_, err := l.ConfirmWithdrawal(ctx, Confirmation{Owner: testutil.OwnerA, Signature: testutil.Sig9, Amount: 300})
		assert.True(t, fault.IsNotFound(err), "got %v", err)
	})
	t.Run("deposit signature", func(t *testing.T) {
		_, err := l.ConfirmWithdrawal(ctx, Confirmation{Owner: testutil.OwnerA, Signature: testutil.Sig1, Amount: 1000})
		assert.True(t, fault.IsConflict(err), "got %v", err)
	})
	t.Run("negative fee", func(t *testing.T) {
		_, err := l.ConfirmWithdrawal(ctx, Confirmation{Owner: testutil.OwnerA, Signature: testutil.Sig2, Amount: 300, Fee: -1})
		assert.True(t, fault.IsValidation(err), "got %v", err)
	})

	requireBalance(t, l, testutil.OwnerA, 1000, 300, 700)

	_, err = l.ConfirmWithdrawal(ctx, Confirmation{Owner: testutil.OwnerA, Signature: testutil.Sig2, Amount: 300})
	require.NoError(t, err)

	// Reconfirmation is rejected and does not reapply.
	_, err = l.ConfirmWithdrawal(ctx, Confirmation{Owner: testutil.OwnerA, Signature: testutil.Sig2, Amount: 300})
	assert.True(t, fault.IsInvalidState(err), "got %v", err)
	requireBalance(t, l, testutil.OwnerA, 700, 0, 700)
	requireConsistent(t, l, testutil.OwnerA)
}

func TestFailWithdrawal_Idempotent(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)

	first, err := l.FailWithdrawal(ctx, testutil.OwnerA, testutil.Sig2, "slippage")
	require.NoError(t, err)
	second, err := l.FailWithdrawal(ctx, testutil.OwnerA, testutil.Sig2, "slippage")
	require.NoError(t, err)
	assert.Equal(t, first.Balance(), second.Balance())
	assert.Equal(t, first.Version, second.Version)

	assert.Equal(t, []model.EventType{
		model.EventDeposit, model.EventLock, model.EventWithdrawRequested, model.EventWithdrawFailed,
	}, eventTypes(t, l, testutil.OwnerA))
}

func TestFailWithdrawal_AfterConfirm(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)
	_, err = l.ConfirmWithdrawal(ctx, Confirmation{Owner: testutil.OwnerA, Signature: testutil.Sig2, Amount: 300})
	require.NoError(t, err)

	_, err = l.FailWithdrawal(ctx, testutil.OwnerA, testutil.Sig2, "late")
	assert.True(t, fault.IsInvalidState(err), "got %v", err)

	rec, err := l.Transaction(ctx, testutil.Sig2)
	require.NoError(t, err)
	assert.Equal(t, model.TxConfirmed, rec.Status)
	requireBalance(t, l, testutil.OwnerA, 700, 0, 700)
}

func TestCancelWithdrawal(t *testing.T) {
	s, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)

	_, err = l.CancelWithdrawal(ctx, testutil.OwnerA, ticket.ID, "", "ops")
	assert.True(t, fault.IsValidation(err))

	got, err := l.CancelWithdrawal(ctx, testutil.OwnerA, ticket.ID, "never submitted", "ops")
	require.NoError(t, err)
	assert.Equal(t, model.TicketCancelled, got.Status)
	requireBalance(t, l, testutil.OwnerA, 1000, 0, 1000)

	again, err := l.CancelWithdrawal(ctx, testutil.OwnerA, ticket.ID, "never submitted", "ops")
	require.NoError(t, err)
	assert.Equal(t, got, again)

	entries, err := s.ListAudit(ctx, testutil.OwnerA, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCancelWithdrawal, entries[0].Action)
	assert.Equal(t, "ops", entries[0].Actor)

	// A cancelled ticket cannot be submitted.
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	assert.True(t, fault.IsConflict(err), "got %v", err)
	requireConsistent(t, l, testutil.OwnerA)
}

func TestCancelWithdrawal_SubmittedTicket(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)

	_, err = l.CancelWithdrawal(ctx, testutil.OwnerA, ticket.ID, "timeout", "reconciler")
	assert.True(t, fault.IsConflict(err), "got %v", err)
	requireBalance(t, l, testutil.OwnerA, 1000, 300, 700)
}

func TestCancelWithdrawal_OtherOwnersTicket(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)

	_, err = l.CancelWithdrawal(ctx, testutil.OwnerB, ticket.ID, "timeout", "ops")
	assert.True(t, fault.IsConflict(err), "got %v", err)
}

func TestCollateral_RequiresAuthorizedProgram(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	_, err := l.LockCollateral(ctx, testutil.OwnerA, testutil.Program, 100)
	assert.True(t, fault.IsUnauthorized(err), "got %v", err)
	requireBalance(t, l, testutil.OwnerA, 1000, 0, 1000)
}

func TestCollateral_LockUnlock(t *testing.T) {
	s, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	_, err := l.Gate().Add(ctx, testutil.Program, "admin")
	require.NoError(t, err)

	v, err := l.LockCollateral(ctx, testutil.OwnerA, testutil.Program, 400)
	require.NoError(t, err)
	assert.Equal(t, model.Balance{Total: 1000, Locked: 400, Available: 600}, v.Balance())

	locks, err := l.CollateralLocks(ctx, testutil.OwnerA)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, int64(400), locks[0].Amount)

	_, err = l.UnlockCollateral(ctx, testutil.OwnerA, testutil.Program, 500)
	assert.True(t, fault.IsInvalidState(err), "got %v", err)

	v, err = l.UnlockCollateral(ctx, testutil.OwnerA, testutil.Program, 400)
	require.NoError(t, err)
	assert.Equal(t, model.Balance{Total: 1000, Locked: 0, Available: 1000}, v.Balance())

	locks, err = l.CollateralLocks(ctx, testutil.OwnerA)
	require.NoError(t, err)
	assert.Empty(t, locks)

	entries, err := s.ListAudit(ctx, testutil.OwnerA, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionLockCollateral, entries[0].Action)
	assert.Equal(t, audit.ActionUnlockCollateral, entries[1].Action)
	requireConsistent(t, l, testutil.OwnerA)
}

func TestCollateral_CannotReleaseWithdrawalLock(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)
	_, err := l.Gate().Add(ctx, testutil.Program, "admin")
	require.NoError(t, err)

	_, err = l.RequestWithdrawal(ctx, testutil.OwnerA, 300)
	require.NoError(t, err)

	_, err = l.UnlockCollateral(ctx, testutil.OwnerA, testutil.Program, 300)
	assert.True(t, fault.IsInvalidState(err), "got %v", err)
	requireBalance(t, l, testutil.OwnerA, 1000, 300, 700)
}

func TestAdjust(t *testing.T) {
	s, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	v, err := l.Adjust(ctx, testutil.OwnerA, -150, "fee correction", "ops")
	require.NoError(t, err)
	assert.Equal(t, model.Balance{Total: 850, Locked: 0, Available: 850}, v.Balance())

	_, err = l.Adjust(ctx, testutil.OwnerA, -851, "too much", "ops")
	assert.True(t, fault.IsInsufficientFunds(err), "got %v", err)

	_, err = l.Adjust(ctx, testutil.OwnerA, 0, "nothing", "ops")
	assert.True(t, fault.IsValidation(err))

	_, err = l.Adjust(ctx, testutil.OwnerA, 10, "no actor", "")
	assert.True(t, fault.IsValidation(err))

	entries, err := s.ListAudit(ctx, testutil.OwnerA, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionAdjust, entries[0].Action)
	assert.Equal(t, model.Payload{"total": int64(1000), "locked": int64(0), "available": int64(1000)}, entries[0].Before)

	requireConsistent(t, l, testutil.OwnerA)
}

func TestBalance_UnknownOwner(t *testing.T) {
	_, l := newLedger(t)

	_, err := l.Balance(context.Background(), testutil.OwnerC)
	assert.True(t, fault.IsNotFound(err), "got %v", err)
}

func TestTotalValueLocked(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	_, err := l.RecordDeposit(ctx, Deposit{
		Owner: testutil.OwnerB, Signature: testutil.Sig4, Amount: 250,
		VaultAddress: testutil.VaultB, TokenMint: testutil.Mint,
	})
	require.NoError(t, err)

	tvl, err := l.TotalValueLocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), tvl)

	vaults, err := l.Vaults(ctx)
	require.NoError(t, err)
	assert.Len(t, vaults, 2)
}

func TestHistory(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 100)
	require.NoError(t, err)
	_, err = l.SubmitWithdrawal(ctx, testutil.OwnerA, ticket.ID, testutil.Sig2)
	require.NoError(t, err)

	history, err := l.History(ctx, testutil.OwnerA, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, testutil.Sig2, history[0].Signature)
	assert.Equal(t, testutil.Sig1, history[1].Signature)

	_, err = l.History(ctx, testutil.OwnerA, 0, 0)
	assert.True(t, fault.IsValidation(err))
}

func TestStaleTickets(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	ticket, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 100)
	require.NoError(t, err)

	stale, err := l.StaleTickets(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = l.StaleTickets(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, ticket.ID, stale[0].ID)
}

// Concurrent mixed operations on one vault leave it consistent with its
// event history.
func TestConcurrentOperations_KeepInvariant(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	sigs := []string{testutil.Sig3, testutil.Sig4, testutil.Sig5, testutil.Sig6, testutil.Sig7, testutil.Sig8}

	var wg sync.WaitGroup
	for _, sig := range sigs {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.RecordDeposit(ctx, Deposit{Owner: testutil.OwnerA, Signature: sig, Amount: 50})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 100)
			if err != nil {
				assert.True(t, fault.IsInsufficientFunds(err), "got %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := l.Vault(ctx, testutil.OwnerA)
	require.NoError(t, err)
	assert.True(t, v.Balance().Consistent())
	assert.Equal(t, int64(1300), v.TotalBalance)
	assert.Equal(t, int64(1300), v.TotalDeposited)
	requireConsistent(t, l, testutil.OwnerA)
}

func TestRejectDeposit(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	_, err := l.ObserveDeposit(ctx, testutil.OwnerA, testutil.Sig3, 250)
	require.NoError(t, err)

	rec, err := l.RejectDeposit(ctx, testutil.OwnerA, testutil.Sig3, "dropped")
	require.NoError(t, err)
	assert.Equal(t, model.TxFailed, rec.Status)

	again, err := l.RejectDeposit(ctx, testutil.OwnerA, testutil.Sig3, "dropped")
	require.NoError(t, err)
	assert.Equal(t, rec, again)

	_, err = l.RejectDeposit(ctx, testutil.OwnerA, testutil.Sig1, "late")
	assert.True(t, fault.IsInvalidState(err), "got %v", err)

	// The failed signature can no longer be credited.
	_, err = l.RecordDeposit(ctx, Deposit{Owner: testutil.OwnerA, Signature: testutil.Sig3, Amount: 250})
	assert.True(t, fault.IsConflict(err), "got %v", err)
	requireBalance(t, l, testutil.OwnerA, 1000, 0, 1000)
}

func TestVerify_ConsistentWhileMutating(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	funded(t, l, 1000)

	sigs := []string{
		testutil.Sig2, testutil.Sig3, testutil.Sig4, testutil.Sig5, testutil.Sig6, testutil.Sig7,
		testutil.Sig8, testutil.Sig9, testutil.Sig10, testutil.Sig11, testutil.Sig12,
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, sig := range sigs {
			_, err := l.RecordDeposit(ctx, Deposit{Owner: testutil.OwnerA, Signature: sig, Amount: 1})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for range 100 {
			_, err := l.RequestWithdrawal(ctx, testutil.OwnerA, 1)
			assert.NoError(t, err)
		}
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	for audits := 0; ; audits++ {
		select {
		case <-done:
			requireConsistent(t, l, testutil.OwnerA)
			return
		default:
		}
		report, err := l.Verify(ctx, testutil.OwnerA)
		require.NoError(t, err)
		require.Empty(t, report.Issues, "audit %d", audits)
	}
}

func TestVerify_UnknownOwner(t *testing.T) {
	_, l := newLedger(t)

	_, err := l.Verify(context.Background(), testutil.OwnerB)
	assert.True(t, fault.IsNotFound(err), "got %v", err)
}
