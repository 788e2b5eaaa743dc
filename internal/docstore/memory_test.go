package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/safar/sellanything/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	id, err := s.Insert(ctx, "widgets", widget{Name: "a", Count: 1})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := GetAs[widget](ctx, s, "widgets", id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID, "insert writes the generated key into the id field")
	assert.Equal(t, "a", got.Name)

	id2, err := s.Insert(ctx, "widgets", widget{Name: "b"})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "widgets", "fixed", widget{Name: "c"}))

	all, err := ScanAs[widget](ctx, s, "widgets")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Name, all[1].Name, all[2].Name})

	require.NoError(t, s.Update(ctx, "widgets", id, Fields{"count": 5}))
	got, err = GetAs[widget](ctx, s, "widgets", id)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Count)
	assert.Equal(t, "a", got.Name, "unspecified fields are kept")

	// Put on an existing key keeps its position in scan order.
	require.NoError(t, s.Put(ctx, "widgets", "fixed", widget{Name: "c2"}))
	all, err = ScanAs[widget](ctx, s, "widgets")
	require.NoError(t, err)
	assert.Equal(t, "c2", all[2].Name)

	assert.ErrorIs(t, s.Update(ctx, "widgets", "missing", Fields{"count": 1}), ErrNotFound)
	_, err = s.Get(ctx, "widgets", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "widgets", id2))
	assert.ErrorIs(t, s.Delete(ctx, "widgets", id2), ErrNotFound)

	all, err = ScanAs[widget](ctx, s, "widgets")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	empty, err := s.Scan(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func indexContract(t *testing.T, idx Index) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, idx.AddToIndex(ctx, "seller:1", "p2"))
	require.NoError(t, idx.AddToIndex(ctx, "seller:1", "p1"))
	require.NoError(t, idx.AddToIndex(ctx, "seller:1", "p2"))
	require.NoError(t, idx.AddToIndex(ctx, "seller:2", "p3"))

	ids, err := idx.IndexMembers(ctx, "seller:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids)

	require.NoError(t, idx.RemoveFromIndex(ctx, "seller:1", "p2"))
	require.NoError(t, idx.RemoveFromIndex(ctx, "seller:1", "p2"))
	ids, err = idx.IndexMembers(ctx, "seller:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	ids, err = idx.IndexMembers(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemory())
}

func TestMemoryIndex(t *testing.T) {
	indexContract(t, NewMemory())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "c", "k", widget{Name: "x"}))

	raw, err := m.Get(ctx, "c", "k")
	require.NoError(t, err)
	raw[0] = 'X'

	again, err := m.Get(ctx, "c", "k")
	require.NoError(t, err)
	assert.True(t, json.Valid(again))
}

func TestMergeFieldsShallow(t *testing.T) {
	out, err := mergeFields([]byte(`{"a":1,"nested":{"x":1,"y":2}}`), Fields{"nested": map[string]int{"x": 9}, "b": "two"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"two","nested":{"x":9}}`, string(out))
}

func TestOpenDefaultsToMemory(t *testing.T) {
	be, err := Open(context.Background(), &config.Config{})
	require.NoError(t, err)
	defer be.Close()

	assert.IsType(t, &Memory{}, be.Store)
	assert.Same(t, be.Store, be.Index)
}
