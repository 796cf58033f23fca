package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/repositories"
)

func TestDocumentDriver_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	d := NewDocumentDriver()
	f := repositories.Filter{OwnerID: "alice", WorkspaceID: "w1", ID: "w1"}

	require.NoError(t, d.InsertOne(ctx, "workspaces", f, []byte(`{"id":"w1","name":"Acme"}`)))

	_, err := d.FindOne(ctx, "workspaces", repositories.Filter{OwnerID: "bob", ID: "w1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = d.InsertOne(ctx, "workspaces", repositories.Filter{OwnerID: "bob", WorkspaceID: "w1", ID: "w1"}, []byte(`{"id":"w1"}`))
	assert.NoError(t, err, "same id under another owner is a different document")

	_, err = d.Find(ctx, "workspaces", repositories.Filter{})
	assert.Error(t, err, "owner id is mandatory")
}

func TestDocumentDriver_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	d := NewDocumentDriver()
	f := repositories.Filter{OwnerID: "alice", WorkspaceID: "w1", DashboardID: "d1", ID: "t1"}

	require.NoError(t, d.InsertOne(ctx, "tiles", f, []byte(`{"id":"t1"}`)))
	assert.ErrorIs(t, d.InsertOne(ctx, "tiles", f, []byte(`{"id":"t1"}`)), domain.ErrDuplicateID)
}

func TestDocumentDriver_UpdateMerges(t *testing.T) {
	ctx := context.Background()
	d := NewDocumentDriver()
	f := repositories.Filter{OwnerID: "alice", WorkspaceID: "w1", ID: "w1"}
	require.NoError(t, d.InsertOne(ctx, "workspaces", f, []byte(`{"id":"w1","name":"Acme","website":"acme.io"}`)))

	merged, err := d.UpdateOne(ctx, "workspaces", f, repositories.DocumentPatch{
		Set: map[string]json.RawMessage{"name": json.RawMessage(`"Acme Inc"`)},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"w1","name":"Acme Inc","website":"acme.io"}`, string(merged))

	_, err = d.UpdateOne(ctx, "workspaces", repositories.Filter{OwnerID: "alice", ID: "nope"}, repositories.DocumentPatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentDriver_FindMatchAndOrder(t *testing.T) {
	ctx := context.Background()
	d := NewDocumentDriver()
	for _, id := range []string{"a", "b", "c"} {
		f := repositories.Filter{OwnerID: "alice", WorkspaceID: id, ID: id}
		require.NoError(t, d.InsertOne(ctx, "workspaces", f, []byte(`{"id":"`+id+`","website":"x.io","n":1}`)))
	}

	docs, err := d.Find(ctx, "workspaces", repositories.Filter{OwnerID: "alice", Match: map[string]any{"website": "x.io", "n": 1}})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.JSONEq(t, `{"id":"a","website":"x.io","n":1}`, string(docs[0]))

	docs, err = d.Find(ctx, "workspaces", repositories.Filter{OwnerID: "alice", Match: map[string]any{"website": "y.io"}})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentDriver_DeleteMany(t *testing.T) {
	ctx := context.Background()
	d := NewDocumentDriver()
	for _, id := range []string{"t1", "t2"} {
		require.NoError(t, d.InsertOne(ctx, "tiles", repositories.Filter{OwnerID: "alice", WorkspaceID: "w1", DashboardID: "d1", ID: id}, []byte(`{}`)))
	}
	require.NoError(t, d.InsertOne(ctx, "tiles", repositories.Filter{OwnerID: "alice", WorkspaceID: "w2", DashboardID: "d9", ID: "t3"}, []byte(`{}`)))

	n, err := d.DeleteMany(ctx, "tiles", repositories.Filter{OwnerID: "alice", WorkspaceID: "w1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, d.Count("tiles"))
}

func TestDocumentDriver_ExecTxRollsBack(t *testing.T) {
	ctx := context.Background()
	d := NewDocumentDriver()
	f := repositories.Filter{OwnerID: "alice", WorkspaceID: "w1", ID: "w1"}

	boom := errors.New("boom")
	err := d.ExecTx(ctx, func(ctx context.Context) error {
		require.NoError(t, d.InsertOne(ctx, "workspaces", f, []byte(`{"id":"w1"}`)))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, d.Count("workspaces"))
}

func TestDocumentDriver_FailHook(t *testing.T) {
	ctx := context.Background()
	d := NewDocumentDriver()
	d.Fail = func(op, collection string) error {
		return domain.Unavailable("memory", errors.New("down"))
	}
	assert.ErrorIs(t, d.Ping(ctx), domain.ErrBackendUnavailable)
}

func TestQuotaStore_IncrementIfBelow(t *testing.T) {
	ctx := context.Background()
	s := NewQuotaStore()

	for i := 1; i <= 3; i++ {
		n, ok, err := s.IncrementIfBelow(ctx, "b", models.ActionCreateWorkspace, 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, n)
	}
	n, ok, err := s.IncrementIfBelow(ctx, "b", models.ActionCreateWorkspace, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, n)

	n, ok, err = s.IncrementIfBelow(ctx, "b", models.ActionTileChat, models.Unlimited)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	for i := 0; i < 5; i++ {
		_, err = s.Decrement(ctx, "b", models.ActionCreateWorkspace)
		require.NoError(t, err)
	}
	counts, err := s.Counts(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, counts[models.ActionCreateWorkspace], "decrement floors at zero")
}

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	s := NewKVStore()

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))

	require.NoError(t, s.Delete(ctx, "k"))
	_, found, _ = s.Get(ctx, "k")
	assert.False(t, found)
}
