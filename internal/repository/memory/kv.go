package memory

import (
	"context"
	"errors"
	"sync"

	"insightboard/internal/domain/repositories"
)

// KVStore is an in-memory repositories.KVStore.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// Fail, when set, is consulted before every operation.
	Fail func(op, key string) error
}

func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string][]byte)}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx, "get", key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx, "set", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, "delete", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Update holds the store lock for the whole cycle.
func (s *KVStore) Update(ctx context.Context, key string, fn repositories.UpdateFunc) error {
	if err := s.check(ctx, "update", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, found := s.data[key]
	next, err := fn(append([]byte(nil), current...), found)
	if errors.Is(err, repositories.ErrKeepValue) {
		return nil
	}
	if err != nil {
		return err
	}
	s.data[key] = append([]byte(nil), next...)
	return nil
}

func (s *KVStore) check(ctx context.Context, op, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Fail != nil {
		return s.Fail(op, key)
	}
	return nil
}
