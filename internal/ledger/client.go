package ledger

import "context"

// Identity carries the organization credential used for a single ledger
// call. It is always passed explicitly per call; there is no ambient
// "current organization" state, so concurrent requests acting for different
// organizations cannot observe each other's context.
type Identity struct {
	MSPID string
}

// Client executes named operations against named contracts on the shared
// ledger. Evaluate is a side-effect-free read; Submit is a consensus-durable
// write that either applies atomically or returns an error. Arguments are
// always ordered strings; callers serialize structured values to JSON text
// before submitting.
type Client interface {
	Evaluate(ctx context.Context, id Identity, contract, operation string, args ...string) ([]byte, error)
	Submit(ctx context.Context, id Identity, contract, operation string, args ...string) ([]byte, error)
}
