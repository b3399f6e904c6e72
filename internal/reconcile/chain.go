package reconcile

import "context"

// ChainStatus is what the chain reports for one signature.
type ChainStatus struct {
	Signature string

	// Found is false when the chain has no record of the signature yet.
	Found bool

	// Finalized is true once the outcome can no longer be rolled back.
	Finalized bool

	// Err is the on-chain execution error; empty for success.
	Err string

	Slot      int64
	BlockTime int64
	Fee       int64
}

// ChainClient is the network side of reconciliation.
type ChainClient interface {
	// SignatureStatuses returns one status per signature, in order.
	SignatureStatuses(ctx context.Context, signatures []string) ([]ChainStatus, error)

	// TokenBalance returns the on-chain token balance of a vault address.
	TokenBalance(ctx context.Context, vaultAddress string) (int64, error)
}
