package btree_test

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srdczk/CMU15-445/internal/storage/btree"
	"github.com/srdczk/CMU15-445/internal/storage/buffer"
	"github.com/srdczk/CMU15-445/internal/storage/header"
	"github.com/srdczk/CMU15-445/internal/storage/pageid"
)

// pageIDFor derives a stand-in data-page id from a key, purely so tests can
// assert GetValue returns the RID that was inserted for that key.
func pageIDFor(key int64) pageid.ID { return pageid.ID(key) }

func newTestPool(t *testing.T, poolSize int) *buffer.Pool {
	t.Helper()
	return buffer.New(poolSize, buffer.NewMemoryDiskManager())
}

func TestIndex_GetValueMissOnEmptyTree(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 16)
	dir := header.New(pool)

	idx, err := btree.New[int64](ctx, "empty_idx", pool, dir, nil)
	require.NoError(t, err)

	_, ok, err := idx.GetValue(ctx, int64(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_InsertThenGetValueRoundTrips(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 16)
	dir := header.New(pool)

	idx, err := btree.New[int64](ctx, "roundtrip_idx", pool, dir, nil)
	require.NoError(t, err)

	ok, err := idx.Insert(ctx, int64(7), btree.RID{PageID: 3, Slot: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	rid, found, err := idx.GetValue(ctx, int64(7))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, btree.RID{PageID: 3, Slot: 1}, rid)
}

func TestIndex_InsertDuplicateKeyFails(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 16)
	dir := header.New(pool)

	idx, err := btree.New[int64](ctx, "dup_idx", pool, dir, nil)
	require.NoError(t, err)

	ok, err := idx.Insert(ctx, int64(1), btree.RID{PageID: 1, Slot: 0})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.Insert(ctx, int64(1), btree.RID{PageID: 2, Slot: 0})
	require.NoError(t, err)
	assert.False(t, ok)

	rid, found, err := idx.GetValue(ctx, int64(1))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, btree.RID{PageID: 1, Slot: 0}, rid, "the original insert must be preserved, not overwritten")
}

func TestIndex_LeafSplitProducesInternalRootWithLinkedLeaves(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 32)
	dir := header.New(pool)

	idx, err := btree.New[int64](ctx, "split_idx", pool, dir, nil, btree.WithLeafMaxSize[int64](3))
	require.NoError(t, err)

	for _, key := range []int64{1, 2, 3, 4} {
		ok, err := idx.Insert(ctx, key, btree.RID{PageID: pageIDFor(key), Slot: 0})
		require.NoError(t, err)
		require.True(t, ok)
	}

	isLeaf, err := idx.RootIsLeaf(ctx)
	require.NoError(t, err)
	assert.False(t, isLeaf, "root should have split into an internal node by the fourth insert")

	for _, key := range []int64{1, 2, 3, 4} {
		rid, found, err := idx.GetValue(ctx, key)
		require.NoError(t, err)
		require.True(t, found, "key %d must remain findable after split", key)
		assert.Equal(t, pageIDFor(key), rid.PageID)
	}

	it, err := idx.Begin(ctx)
	require.NoError(t, err)
	defer it.Close()

	var seen []int64
	for !it.IsEnd() {
		seen = append(seen, it.Key())
		require.NoError(t, it.Next(ctx))
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, seen, "iteration across split leaves must stay in ascending order")
}

func TestIndex_RangeScanFromBeginAt(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 32)
	dir := header.New(pool)

	idx, err := btree.New[int64](ctx, "range_idx", pool, dir, nil, btree.WithLeafMaxSize[int64](3))
	require.NoError(t, err)

	for _, key := range []int64{10, 20, 30, 40, 50} {
		ok, err := idx.Insert(ctx, key, btree.RID{PageID: pageIDFor(key), Slot: 0})
		require.NoError(t, err)
		require.True(t, ok)
	}

	it, err := idx.BeginAt(ctx, int64(25))
	require.NoError(t, err)
	defer it.Close()

	var seen []int64
	for !it.IsEnd() {
		seen = append(seen, it.Key())
		require.NoError(t, it.Next(ctx))
	}
	assert.Equal(t, []int64{30, 40, 50}, seen)

	for _, key := range []int64{10, 20, 30, 40, 50} {
		_, found, err := idx.GetValue(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
	}
	assertAllPagesUnpinned(t, pool)
}

func TestIndex_BeginAtDescendsToNonLeftmostLeaf(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 64)
	dir := header.New(pool)

	idx, err := btree.New[int64](ctx, "beginat_descent_idx", pool, dir, nil, btree.WithLeafMaxSize[int64](2))
	require.NoError(t, err)

	keys := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	for _, key := range keys {
		ok, err := idx.Insert(ctx, key, btree.RID{PageID: pageIDFor(key), Slot: 0})
		require.NoError(t, err)
		require.True(t, ok)
	}

	levels, err := idx.BFS(ctx)
	require.NoError(t, err)
	leafCount := len(levels[len(levels)-1])
	require.GreaterOrEqual(t, leafCount, 3, "this tree must have at least 3 leaves for the test to be meaningful")

	leftmost, err := idx.Begin(ctx)
	require.NoError(t, err)
	require.False(t, leftmost.IsEnd())
	firstKeyOfLeftmostLeaf := leftmost.Key()
	leftmost.Close()
	assert.Equal(t, int64(1), firstKeyOfLeftmostLeaf)

	target := int64(7)
	it, err := idx.BeginAt(ctx, target)
	require.NoError(t, err)
	defer it.Close()

	require.False(t, it.IsEnd())
	assert.Equal(t, target, it.Key(), "BeginAt must land directly on the leaf containing the target key")
	assert.NotEqual(t, firstKeyOfLeftmostLeaf, it.Key(), "BeginAt must not have landed on the leftmost leaf")

	var seen []int64
	for !it.IsEnd() {
		seen = append(seen, it.Key())
		require.NoError(t, it.Next(ctx))
	}
	assert.Equal(t, []int64{7, 8, 9}, seen)
}

func TestIndex_CascadingSplitsWithRandomizedKeys(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 256)
	dir := header.New(pool)

	idx, err := btree.New[int64](ctx, "cascade_idx", pool, dir, nil, btree.WithLeafMaxSize[int64](3), btree.WithInternalMaxSize[int64](3))
	require.NoError(t, err)

	seen := map[int64]bool{}
	var keys []int64
	for len(keys) < 60 {
		k := int64(gofakeit.Number(1, 1_000_000))
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}

	for _, k := range keys {
		ok, err := idx.Insert(ctx, k, btree.RID{PageID: pageIDFor(k), Slot: 0})
		require.NoError(t, err)
		require.True(t, ok)
	}

	for _, k := range keys {
		rid, found, err := idx.GetValue(ctx, k)
		require.NoError(t, err)
		require.True(t, found, "key %d must be findable", k)
		assert.Equal(t, pageIDFor(k), rid.PageID)
	}

	assertAllPagesUnpinned(t, pool)
}

func TestIndex_DeleteIsNotImplemented(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 16)
	dir := header.New(pool)

	idx, err := btree.New[int64](ctx, "delete_idx", pool, dir, nil)
	require.NoError(t, err)

	err = idx.Delete(ctx, int64(1))
	assert.ErrorIs(t, err, btree.ErrNotImplemented)
}

func TestIndex_ReopeningRecoversRootFromHeaderPage(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 32)
	dir := header.New(pool)

	first, err := btree.New[int64](ctx, "reopen_idx", pool, dir, nil)
	require.NoError(t, err)
	_, err = first.Insert(ctx, int64(99), btree.RID{PageID: 5, Slot: 0})
	require.NoError(t, err)

	second, err := btree.New[int64](ctx, "reopen_idx", pool, dir, nil)
	require.NoError(t, err)
	rid, found, err := second.GetValue(ctx, int64(99))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(5), uint32(rid.PageID))
}

func assertAllPagesUnpinned(t *testing.T, pool *buffer.Pool) {
	t.Helper()
	assert.Equal(t, 0, pool.TotalPinCount(), "every fetched page must be unpinned by the end of the operation")
}
