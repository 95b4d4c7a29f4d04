package blocklist

import "context"

// Store is the block registry: a durable fingerprint -> blocked mapping.
//
// IsBlocked sits on the synchronous screening path, so implementations must
// answer from local state only, with no remote calls or unbounded waits.
// SetBlocked(..., false) removes the entry entirely.
type Store interface {
	IsBlocked(ctx context.Context, fingerprint string) (bool, error)
	SetBlocked(ctx context.Context, fingerprint string, blocked bool) error
	List(ctx context.Context) ([]Entry, error)
}
