package storage

import "context"

// KV is the persistent storage contract the loan store writes through:
// string-keyed, string-valued, whole-value reads and writes.
type KV interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Pinger is implemented by backends with a real connection to report on.
type Pinger interface {
	Ping(ctx context.Context) error
}
