// Package store provides a keyed, expiring key-value abstraction used for
// token revocation records, refresh-token existence records and one-time
// codes.  Production wiring targets a shared Redis instance with an
// in-process fallback map; tests inject the memory implementation directly.
package store

import (
    "context"
    "time"
)

// Store is the minimal expiring key-value port.  All values are strings;
// a TTL of zero or less on SetWithTTL is rejected by implementations so
// that no entry can live forever.
type Store interface {
    // SetWithTTL writes key=value, overwriting any previous value, and
    // arranges for the entry to expire after ttl.
    SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
    // Get returns the value for key and whether a live entry exists.
    Get(ctx context.Context, key string) (string, bool, error)
    // Exists reports whether a live entry exists for key.
    Exists(ctx context.Context, key string) (bool, error)
    // Delete removes the entry for key.  Deleting an absent key is not an
    // error.
    Delete(ctx context.Context, key string) error
}
