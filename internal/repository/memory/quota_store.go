package memory

import (
	"context"
	"sync"

	"insightboard/internal/domain/models"
)

// QuotaStore is an in-memory repositories.QuotaStore. IncrementIfBelow is
// atomic under its mutex.
type QuotaStore struct {
	mu     sync.Mutex
	counts map[string]map[models.Action]int

	// Fail, when set, is consulted before every operation.
	Fail func(op string) error
}

func NewQuotaStore() *QuotaStore {
	return &QuotaStore{counts: make(map[string]map[models.Action]int)}
}

func (s *QuotaStore) Counts(ctx context.Context, bucket string) (map[models.Action]int, error) {
	if err := s.check(ctx, "counts"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.Action]int, len(s.counts[bucket]))
	for action, n := range s.counts[bucket] {
		out[action] = n
	}
	return out, nil
}

func (s *QuotaStore) IncrementIfBelow(ctx context.Context, bucket string, action models.Action, limit int) (int, bool, error) {
	if err := s.check(ctx, "increment"); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts, ok := s.counts[bucket]
	if !ok {
		counts = make(map[models.Action]int)
		s.counts[bucket] = counts
	}
	current := counts[action]
	if limit != models.Unlimited && current >= limit {
		return current, false, nil
	}
	counts[action] = current + 1
	return current + 1, true, nil
}

func (s *QuotaStore) Decrement(ctx context.Context, bucket string, action models.Action) (int, error) {
	if err := s.check(ctx, "decrement"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := s.counts[bucket]
	if counts == nil || counts[action] == 0 {
		return 0, nil
	}
	counts[action]--
	return counts[action], nil
}

func (s *QuotaStore) Reset(ctx context.Context, bucket string) error {
	if err := s.check(ctx, "reset"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, bucket)
	return nil
}

func (s *QuotaStore) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Fail != nil {
		return s.Fail(op)
	}
	return nil
}
