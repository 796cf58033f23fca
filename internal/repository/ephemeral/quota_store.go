package ephemeral

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"insightboard/internal/domain/models"
	"insightboard/internal/domain/repositories"
)

// QuotaStore keeps guest quota counters as one KV blob per session. Counters
// read as zero once the window has elapsed or when the stored version differs
// from the configured one.
type QuotaStore struct {
	kv      repositories.KVStore
	locks   *Locks
	window  time.Duration
	version int
	now     func() time.Time
}

type quotaBlob struct {
	Version     int                   `json:"version"`
	WindowStart time.Time             `json:"windowStart"`
	Counts      map[models.Action]int `json:"counts"`
}

func NewQuotaStore(kv repositories.KVStore, locks *Locks, window time.Duration, version int) *QuotaStore {
	return &QuotaStore{kv: kv, locks: locks, window: window, version: version, now: time.Now}
}

// WithClock replaces the time source used for window checks.
func (s *QuotaStore) WithClock(now func() time.Time) *QuotaStore {
	s.now = now
	return s
}

func (s *QuotaStore) Counts(ctx context.Context, bucket string) (map[models.Action]int, error) {
	raw, found, err := s.kv.Get(ctx, QuotaKey(bucket))
	if err != nil {
		return nil, unavailable(err)
	}
	blob := s.decode(raw, found)
	out := make(map[models.Action]int, len(blob.Counts))
	for action, n := range blob.Counts {
		out[action] = n
	}
	return out, nil
}

// IncrementIfBelow compares and increments inside one Mutate cycle, so the
// limit holds even when several instances share the guest KV.
func (s *QuotaStore) IncrementIfBelow(ctx context.Context, bucket string, action models.Action, limit int) (int, bool, error) {
	var count int
	var granted bool
	err := Mutate(ctx, s.kv, s.locks, QuotaKey(bucket), func(raw []byte, found bool) ([]byte, error) {
		blob := s.decode(raw, found)
		count, granted = blob.Counts[action], false
		if limit != models.Unlimited && count >= limit {
			return nil, repositories.ErrKeepValue
		}
		blob.Counts[action]++
		count, granted = blob.Counts[action], true
		return encodeBlob(blob)
	})
	if err != nil {
		return 0, false, err
	}
	return count, granted, nil
}

func (s *QuotaStore) Decrement(ctx context.Context, bucket string, action models.Action) (int, error) {
	var count int
	err := Mutate(ctx, s.kv, s.locks, QuotaKey(bucket), func(raw []byte, found bool) ([]byte, error) {
		blob := s.decode(raw, found)
		count = blob.Counts[action]
		if count == 0 {
			return nil, repositories.ErrKeepValue
		}
		count--
		blob.Counts[action] = count
		return encodeBlob(blob)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *QuotaStore) Reset(ctx context.Context, bucket string) error {
	defer s.locks.Lock(QuotaKey(bucket))()
	if err := s.kv.Delete(ctx, QuotaKey(bucket)); err != nil {
		return unavailable(err)
	}
	return nil
}

// decode returns the stored counters, or a fresh window when the blob is
// missing, expired, from another version or unreadable. A corrupt blob starts
// a new window rather than locking the guest out.
func (s *QuotaStore) decode(raw []byte, found bool) *quotaBlob {
	now := s.now().UTC()
	fresh := &quotaBlob{Version: s.version, WindowStart: now, Counts: make(map[models.Action]int)}
	if !found {
		return fresh
	}
	var blob quotaBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return fresh
	}
	if blob.Version != s.version || (s.window > 0 && !now.Before(blob.WindowStart.Add(s.window))) {
		return fresh
	}
	if blob.Counts == nil {
		blob.Counts = make(map[models.Action]int)
	}
	return &blob
}

func encodeBlob(blob *quotaBlob) ([]byte, error) {
	raw, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("encode guest quota: %w", err)
	}
	return raw, nil
}
