package calllog

import "context"

// Store persists call history. Append must be cheap; it runs on the tail of
// every call teardown and on the screening block path.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}
