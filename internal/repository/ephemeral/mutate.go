package ephemeral

import (
	"context"
	"errors"

	"insightboard/internal/domain/repositories"
)

// Mutate runs one read-modify-write cycle on key. The process-local lock
// keeps this instance's goroutines from retrying against each other; when kv
// is a repositories.AtomicKV the cycle is also atomic against other
// instances sharing the backend. Errors returned by fn come back unchanged,
// KV failures come back as BackendUnavailable.
func Mutate(ctx context.Context, kv repositories.KVStore, locks *Locks, key string, fn repositories.UpdateFunc) error {
	defer locks.Lock(key)()

	var fnErr error
	tracked := func(current []byte, found bool) ([]byte, error) {
		next, err := fn(current, found)
		fnErr = err
		return next, err
	}

	var err error
	if atomic, ok := kv.(repositories.AtomicKV); ok {
		err = atomic.Update(ctx, key, tracked)
	} else {
		err = getAndSet(ctx, kv, key, tracked)
	}
	if err == nil {
		return nil
	}
	if fnErr != nil && errors.Is(err, fnErr) {
		return fnErr
	}
	return unavailable(err)
}

func getAndSet(ctx context.Context, kv repositories.KVStore, key string, fn repositories.UpdateFunc) error {
	current, found, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(current, found)
	if errors.Is(err, repositories.ErrKeepValue) {
		return nil
	}
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, next)
}
