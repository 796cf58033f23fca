package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"insightboard/internal/domain"
	"insightboard/internal/domain/repositories"
)

// maxUpdateAttempts bounds optimistic retries in Update. Each failed attempt
// means another writer committed, so the bound is only reached under
// sustained contention on one key.
const maxUpdateAttempts = 32

// KVStore keeps guest blobs as plain Redis strings under a key prefix.
// Every write refreshes the TTL so idle sessions expire.
type KVStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewKVStore returns a store writing keys as prefix+key. A zero ttl keeps
// keys forever.
func NewKVStore(client *redis.Client, prefix string, ttl time.Duration) *KVStore {
	return &KVStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mapError(err)
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	return mapError(s.client.Set(ctx, s.prefix+key, value, s.ttl).Err())
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return mapError(s.client.Del(ctx, s.prefix+key).Err())
}

// Update runs fn under WATCH and commits its result in MULTI/EXEC, retrying
// when the key changed in between.
func (s *KVStore) Update(ctx context.Context, key string, fn repositories.UpdateFunc) error {
	full := s.prefix + key
	cycle := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, full).Bytes()
		found := true
		if errors.Is(err, redis.Nil) {
			current, found = nil, false
		} else if err != nil {
			return err
		}

		next, err := fn(current, found)
		if errors.Is(err, repositories.ErrKeepValue) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, next, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, cycle, full)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return mapError(err)
	}
	return domain.Unavailable("redis", fmt.Errorf("update %s: gave up after %d conflicting attempts", key, maxUpdateAttempts))
}
