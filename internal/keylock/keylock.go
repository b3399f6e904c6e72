// Package keylock provides per-key critical sections.
//
// Every owner-scoped ledger mutation runs under VaultKey(owner), so two
// mutations of the same vault never interleave while mutations of different
// vaults proceed independently. Local serves a single process; Redis extends
// the guarantee across processes sharing one database.
package keylock

import "context"

// Locker runs fn while holding the lock for key.
//
// A lock that cannot be acquired before ctx ends, or within the locker's
// retry budget, yields a TransientError and fn is not called. Errors from fn
// are returned unchanged.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// VaultKey is the lock key for all mutations of owner's vault.
func VaultKey(owner string) string {
	return "vault:" + owner
}

// SignatureKey is the lock key for a transaction not associated with a vault.
func SignatureKey(signature string) string {
	return "sig:" + signature
}
