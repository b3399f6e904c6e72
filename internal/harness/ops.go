package harness

import (
	"context"
	"fmt"

	"github.com/roach88/vaultledger/internal/ledger"
)

// operation invokes one ledger call. It returns the id of the ticket the
// call produced, if any.
type operation func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error)

var operations = map[string]operation{
	"open": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.OpenOrGet(ctx, a.str("owner"), a.str("vault_address"), a.str("token_mint"))
		return "", err
	},
	"deposit": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.RecordDeposit(ctx, ledger.Deposit{
			Owner:        a.str("owner"),
			Signature:    a.str("signature"),
			Amount:       a.num("amount"),
			Slot:         a.num("slot"),
			BlockTime:    a.num("block_time"),
			VaultAddress: a.str("vault_address"),
			TokenMint:    a.str("token_mint"),
		})
		return "", err
	},
	"observe_deposit": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.ObserveDeposit(ctx, a.str("owner"), a.str("signature"), a.num("amount"))
		return "", err
	},
	"reject_deposit": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.RejectDeposit(ctx, a.str("owner"), a.str("signature"), a.str("error"))
		return "", err
	},
	"request_withdrawal": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		t, err := l.RequestWithdrawal(ctx, a.str("owner"), a.num("amount"))
		return t.ID, err
	},
	"submit_withdrawal": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		t, err := l.SubmitWithdrawal(ctx, a.str("owner"), a.str("ticket"), a.str("signature"))
		return t.ID, err
	},
	"confirm_withdrawal": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.ConfirmWithdrawal(ctx, ledger.Confirmation{
			Owner:     a.str("owner"),
			Signature: a.str("signature"),
			Amount:    a.num("amount"),
			Slot:      a.num("slot"),
			BlockTime: a.num("block_time"),
			Fee:       a.num("fee"),
		})
		return "", err
	},
	"fail_withdrawal": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.FailWithdrawal(ctx, a.str("owner"), a.str("signature"), a.str("error"))
		return "", err
	},
	"cancel_withdrawal": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		t, err := l.CancelWithdrawal(ctx, a.str("owner"), a.str("ticket"), a.str("reason"), a.str("actor"))
		return t.ID, err
	},
	"lock_collateral": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.LockCollateral(ctx, a.str("owner"), a.str("program"), a.num("amount"))
		return "", err
	},
	"unlock_collateral": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.UnlockCollateral(ctx, a.str("owner"), a.str("program"), a.num("amount"))
		return "", err
	},
	"adjust": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.Adjust(ctx, a.str("owner"), a.num("delta"), a.str("reason"), a.str("actor"))
		return "", err
	},
	"add_program": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.Gate().Add(ctx, a.str("program"), a.str("actor"))
		return "", err
	},
	"remove_program": func(ctx context.Context, l *ledger.Ledger, a *stepArgs) (string, error) {
		_, err := l.Gate().Remove(ctx, a.str("program"), a.str("actor"))
		return "", err
	},
}

// stepArgs reads typed step arguments. The first type error is kept in err
// and later reads return zero values.
type stepArgs struct {
	raw     map[string]any
	aliases *aliases
	err     error
}

// str returns the argument with aliases resolved, or "" when absent.
func (a *stepArgs) str(key string) string {
	v, ok := a.raw[key]
	if !ok || a.err != nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.err = fmt.Errorf("arg %q: expected string, got %T", key, v)
		return ""
	}
	return a.aliases.resolve(s)
}

// num returns the integer argument, or 0 when absent.
//
// YAML decodes integers as int; floats are rejected because amounts are
// always whole base units.
func (a *stepArgs) num(key string) int64 {
	v, ok := a.raw[key]
	if !ok || a.err != nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint64:
		if n > 1<<63-1 {
			a.err = fmt.Errorf("arg %q: %d overflows int64", key, n)
			return 0
		}
		return int64(n)
	default:
		a.err = fmt.Errorf("arg %q: expected integer, got %T", key, v)
		return 0
	}
}
