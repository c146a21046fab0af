package btree

import (
	"context"
	"fmt"

	"github.com/srdczk/CMU15-445/internal/storage/buffer"
	"github.com/srdczk/CMU15-445/internal/storage/pageid"
)

// Iterator walks an Index in ascending key order, leaf by leaf, following
// the next-leaf pointers left by splits. It holds a pin on its current
// leaf; callers MUST call Close once done (typically via defer) to release
// it, since Go has no destructors to do so automatically.
type Iterator[T Key] struct {
	pool *buffer.Pool
	cmp  Comparator[T]

	guard *buffer.Guard
	leaf  *leafNode[T]
	slot  int
}

// Begin returns an iterator positioned at the first entry of the tree, or
// an already-exhausted iterator if the tree is empty.
func (idx *Index[T]) Begin(ctx context.Context) (*Iterator[T], error) {
	if idx.IsEmpty() {
		return &Iterator[T]{pool: idx.pool, cmp: idx.cmp}, nil
	}
	return idx.descendToLeaf(ctx, idx.root,
		func(n *internalNode[T]) pageid.ID { return n.entries[0].Child },
		func(n *leafNode[T]) int { return 0 },
	)
}

// BeginAt returns an iterator positioned at the first entry whose key is
// >= key, or an exhausted iterator if no such entry exists. The descent
// follows the same key-based child lookup GetValue and Insert use, so it
// lands on the leaf that would actually contain key rather than always the
// leftmost one.
func (idx *Index[T]) BeginAt(ctx context.Context, key T) (*Iterator[T], error) {
	if idx.IsEmpty() {
		return &Iterator[T]{pool: idx.pool, cmp: idx.cmp}, nil
	}
	return idx.descendToLeaf(ctx, idx.root,
		func(n *internalNode[T]) pageid.ID { return n.lookup(idx.cmp, key) },
		func(n *leafNode[T]) int { return n.firstIndexAtLeast(idx.cmp, key) },
	)
}

func (idx *Index[T]) descendToLeaf(ctx context.Context, pid pageid.ID, childOf func(*internalNode[T]) pageid.ID, slotOf func(*leafNode[T]) int) (*Iterator[T], error) {
	for {
		g, err := idx.pool.FetchPage(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("descend to leaf: %w", err)
		}

		if peekTag(g.Frame().Data[:]) == tagLeaf {
			leaf := unmarshalLeaf[T](g.Frame().Data[:])
			it := &Iterator[T]{
				pool:  idx.pool,
				cmp:   idx.cmp,
				guard: g,
				leaf:  &leaf,
				slot:  slotOf(&leaf),
			}
			if err := it.advancePastExhaustedLeaves(ctx); err != nil {
				return nil, err
			}
			return it, nil
		}

		internal := unmarshalInternal[T](g.Frame().Data[:])
		child := childOf(&internal)
		g.Done(false)
		pid = child
	}
}

// IsEnd reports whether the iterator has no more entries.
func (it *Iterator[T]) IsEnd() bool {
	return it.leaf == nil || it.slot >= len(it.leaf.entries)
}

// Key returns the current entry's key. Undefined if IsEnd.
func (it *Iterator[T]) Key() T { return it.leaf.entries[it.slot].Key }

// Value returns the current entry's RID. Undefined if IsEnd.
func (it *Iterator[T]) Value() RID { return it.leaf.entries[it.slot].Value }

// Next advances to the next entry, crossing into sibling leaves as needed.
func (it *Iterator[T]) Next(ctx context.Context) error {
	if it.IsEnd() {
		return nil
	}
	it.slot++
	return it.advancePastExhaustedLeaves(ctx)
}

// advancePastExhaustedLeaves follows next-leaf pointers while the current
// leaf has been fully consumed, so IsEnd only ever reports true once the
// entire chain is exhausted.
func (it *Iterator[T]) advancePastExhaustedLeaves(ctx context.Context) error {
	for it.leaf != nil && it.slot >= len(it.leaf.entries) {
		next := it.leaf.next
		it.guard.Done(false)
		it.guard = nil
		it.leaf = nil

		if next == pageid.Invalid {
			return nil
		}

		g, err := it.pool.FetchPage(ctx, next)
		if err != nil {
			return fmt.Errorf("iterator: advance: %w", err)
		}
		leaf := unmarshalLeaf[T](g.Frame().Data[:])
		it.guard = g
		it.leaf = &leaf
		it.slot = 0
	}
	return nil
}

// Close unpins the iterator's current leaf, if any. Safe to call multiple
// times and on an already-exhausted iterator.
func (it *Iterator[T]) Close() {
	if it.guard != nil {
		it.guard.Done(false)
		it.guard = nil
	}
	it.leaf = nil
}
