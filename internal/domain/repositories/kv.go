package repositories

import (
	"context"
	"errors"
)

// KVStore is the local/session storage primitive behind guest data: a
// serialized blob per key.
type KVStore interface {
	// Get returns found=false (and no error) for a missing key.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ErrKeepValue, returned from an UpdateFunc, ends the cycle without writing.
var ErrKeepValue = errors.New("keep current value")

// UpdateFunc computes the next value of a key from its current one. It may
// run more than once when a concurrent writer wins the race, so it must not
// depend on state left behind by an earlier call.
type UpdateFunc func(current []byte, found bool) (next []byte, err error)

// AtomicKV is a KVStore whose read-modify-write cycles on one key are atomic
// across every process sharing the backend.
type AtomicKV interface {
	KVStore
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
