package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightboard/internal/domain/repositories"
)

func TestKVStore_Update(t *testing.T) {
	ctx := context.Background()
	s := NewKVStore()

	require.NoError(t, s.Update(ctx, "k", func(current []byte, found bool) ([]byte, error) {
		assert.False(t, found)
		return nil, repositories.ErrKeepValue
	}))
	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, "k", func(current []byte, found bool) ([]byte, error) {
				n, _ := strconv.Atoi(string(current))
				return []byte(strconv.Itoa(n + 1)), nil
			}))
		}()
	}
	wg.Wait()
	value, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "50", string(value))

	refused := errors.New("refused")
	err = s.Update(ctx, "k", func([]byte, bool) ([]byte, error) { return []byte("x"), refused })
	require.ErrorIs(t, err, refused)
	value, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "50", string(value))

	s.Fail = func(op, _ string) error {
		if op == "update" {
			return errors.New("offline")
		}
		return nil
	}
	assert.Error(t, s.Update(ctx, "k", func([]byte, bool) ([]byte, error) { t.Fatal("not called"); return nil, nil }))
}
