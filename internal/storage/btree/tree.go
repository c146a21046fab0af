package btree

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/srdczk/CMU15-445/internal/storage/buffer"
	"github.com/srdczk/CMU15-445/internal/storage/header"
	"github.com/srdczk/CMU15-445/internal/storage/pageid"
)

// ErrNotImplemented is returned by Delete. The source declares Remove,
// CoalesceOrRedistribute, Coalesce, Redistribute and AdjustRoot but they
// return trivial defaults; this implementation makes the limitation an
// explicit error instead of a silent no-op.
var ErrNotImplemented = fmt.Errorf("btree: delete is not implemented")

// Index is the B+-tree index described by the spec: a single-writer-at-a-
// time ordered index over (key, RID), built entirely through a buffer
// pool. There is no tree-wide lock; concurrency correctness relies on the
// pool's own latch plus external writer coordination, per the spec.
type Index[T Key] struct {
	name   string
	pool   *buffer.Pool
	header *header.Directory
	cmp    Comparator[T]
	logger *zap.SugaredLogger

	leafMaxSize     int
	internalMaxSize int

	root pageid.ID
}

// New opens (or, if name is unregistered, prepares to lazily create) the
// index called name. cmp orders keys; if nil, Default[T]() is used.
func New[T Key](ctx context.Context, name string, pool *buffer.Pool, dir *header.Directory, cmp Comparator[T], opts ...Option[T]) (*Index[T], error) {
	if cmp == nil {
		cmp = Default[T]()
	}

	idx := &Index[T]{
		name:            name,
		pool:            pool,
		header:          dir,
		cmp:             cmp,
		logger:          zap.NewNop().Sugar(),
		leafMaxSize:     DefaultLeafMaxSize,
		internalMaxSize: DefaultInternalMaxSize,
		root:            pageid.Invalid,
	}
	for _, opt := range opts {
		opt(idx)
	}

	root, ok, err := dir.GetRecord(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open index %q: %w", name, err)
	}
	if ok {
		idx.root = root
	}

	return idx, nil
}

// RootPageID returns the current root, or pageid.Invalid for an empty tree.
func (idx *Index[T]) RootPageID() pageid.ID { return idx.root }

// IsEmpty reports whether the tree has no root yet.
func (idx *Index[T]) IsEmpty() bool { return idx.root == pageid.Invalid }

// GetValue looks up key, descending from the root and unpinning every page
// it visits except none -- every fetched page is unpinned before this
// returns.
func (idx *Index[T]) GetValue(ctx context.Context, key T) (RID, bool, error) {
	if idx.IsEmpty() {
		return RID{}, false, nil
	}

	pid := idx.root
	for {
		g, err := idx.pool.FetchPage(ctx, pid)
		if err != nil {
			return RID{}, false, fmt.Errorf("get value: %w", err)
		}

		if peekTag(g.Frame().Data[:]) == tagLeaf {
			leaf := unmarshalLeaf[T](g.Frame().Data[:])
			rid, ok := leaf.lookup(idx.cmp, key)
			g.Done(false)
			return rid, ok, nil
		}

		internal := unmarshalInternal[T](g.Frame().Data[:])
		child := internal.lookup(idx.cmp, key)
		g.Done(false)
		pid = child
	}
}

// Insert adds (key, value), returning false without side effects if key is
// already present.
func (idx *Index[T]) Insert(ctx context.Context, key T, value RID) (bool, error) {
	if idx.IsEmpty() {
		return idx.startNewTree(ctx, key, value)
	}

	pid := idx.root
	for {
		g, err := idx.pool.FetchPage(ctx, pid)
		if err != nil {
			return false, fmt.Errorf("insert: %w", err)
		}

		if peekTag(g.Frame().Data[:]) != tagLeaf {
			internal := unmarshalInternal[T](g.Frame().Data[:])
			child := internal.lookup(idx.cmp, key)
			g.Done(false)
			pid = child
			continue
		}

		leaf := unmarshalLeaf[T](g.Frame().Data[:])
		if _, exists := leaf.lookup(idx.cmp, key); exists {
			g.Done(false)
			return false, nil
		}

		leaf.insert(idx.cmp, key, value)
		if err := maxEntrySpaceCheck(leafHeaderSize+leafEntriesSize(leaf.entries), buffer.PageSize, "leaf"); err != nil {
			g.Done(false)
			return false, err
		}

		if len(leaf.entries) <= idx.leafMaxSize {
			marshalLeaf(leaf, g.Frame().Data[:])
			g.Done(true)
			return true, nil
		}

		oldParent := leaf.parent
		rightPageID, sepKey, err := idx.splitLeaf(ctx, &leaf)
		if err != nil {
			g.Done(false)
			return false, fmt.Errorf("insert: split leaf: %w", err)
		}
		marshalLeaf(leaf, g.Frame().Data[:])
		g.Done(true)

		idx.logger.With("leaf", pid, "sibling", rightPageID).Debugw("btree leaf split")

		if err := idx.insertIntoParent(ctx, pid, oldParent, sepKey, rightPageID); err != nil {
			return false, err
		}
		return true, nil
	}
}

func leafEntriesSize[T Key](entries []leafEntry[T]) int {
	total := 0
	for _, e := range entries {
		total += keySize(e.Key) + 8
	}
	return total
}

func internalEntriesSize[T Key](entries []internalEntry[T]) int {
	total := 0
	for _, e := range entries {
		total += keySize(e.Key) + 4
	}
	return total
}

func (idx *Index[T]) startNewTree(ctx context.Context, key T, value RID) (bool, error) {
	g, rootID, err := idx.pool.NewPage(ctx)
	if err != nil {
		return false, fmt.Errorf("start new tree: %w", err)
	}

	leaf := leafNode[T]{
		parent:  pageid.Invalid,
		next:    pageid.Invalid,
		entries: []leafEntry[T]{{Key: key, Value: value}},
	}
	marshalLeaf(leaf, g.Frame().Data[:])
	g.Done(true)

	idx.root = rootID
	if err := idx.header.InsertRecord(ctx, idx.name, rootID); err != nil {
		return false, fmt.Errorf("start new tree: %w", err)
	}
	return true, nil
}

// splitLeaf moves the upper half of left's entries into a freshly allocated
// sibling, splices the next-leaf pointer, and returns the sibling's page id
// and the separator key (the sibling's first key).
func (idx *Index[T]) splitLeaf(ctx context.Context, left *leafNode[T]) (pageid.ID, T, error) {
	var zero T

	g, rightPageID, err := idx.pool.NewPage(ctx)
	if err != nil {
		return pageid.Invalid, zero, err
	}

	mid := len(left.entries) / 2
	right := leafNode[T]{
		parent:  left.parent,
		next:    left.next,
		entries: append([]leafEntry[T]{}, left.entries[mid:]...),
	}
	left.entries = left.entries[:mid:mid]
	left.next = rightPageID

	sep := right.entries[0].Key
	marshalLeaf(right, g.Frame().Data[:])
	g.Done(true)

	return rightPageID, sep, nil
}

// insertIntoParent implements the spec's insert_into_parent: either L was
// the root (allocate a new internal root over L and R), or L has a real
// parent (insert the separator there, cascading a split upward if that
// overflows too).
func (idx *Index[T]) insertIntoParent(ctx context.Context, leftPageID, leftParent pageid.ID, sepKey T, rightPageID pageid.ID) error {
	if leftParent == pageid.Invalid {
		var zero T
		g, newRootID, err := idx.pool.NewPage(ctx)
		if err != nil {
			return fmt.Errorf("insert into parent: new root: %w", err)
		}

		newRoot := internalNode[T]{
			parent: pageid.Invalid,
			entries: []internalEntry[T]{
				{Key: zero, Child: leftPageID},
				{Key: sepKey, Child: rightPageID},
			},
		}
		marshalInternal(newRoot, g.Frame().Data[:])
		g.Done(true)

		idx.root = newRootID
		if err := idx.header.UpdateRecord(ctx, idx.name, newRootID); err != nil {
			return fmt.Errorf("insert into parent: %w", err)
		}

		if err := idx.setParent(ctx, leftPageID, newRootID); err != nil {
			return err
		}
		if err := idx.setParent(ctx, rightPageID, newRootID); err != nil {
			return err
		}
		return nil
	}

	if err := idx.setParent(ctx, rightPageID, leftParent); err != nil {
		return err
	}

	g, err := idx.pool.FetchPage(ctx, leftParent)
	if err != nil {
		return fmt.Errorf("insert into parent: fetch parent: %w", err)
	}

	parent := unmarshalInternal[T](g.Frame().Data[:])
	parent.insertAfter(leftPageID, sepKey, rightPageID)

	if err := maxEntrySpaceCheck(internalHeaderSize+internalEntriesSize(parent.entries), buffer.PageSize, "internal"); err != nil {
		g.Done(false)
		return err
	}

	if len(parent.entries) <= idx.internalMaxSize {
		marshalInternal(parent, g.Frame().Data[:])
		g.Done(true)
		return nil
	}

	grandparent := parent.parent
	newSep, siblingPageID, err := idx.splitInternal(ctx, leftParent, &parent)
	if err != nil {
		g.Done(false)
		return fmt.Errorf("insert into parent: split internal: %w", err)
	}
	marshalInternal(parent, g.Frame().Data[:])
	g.Done(true)

	idx.logger.With("internal", leftParent, "sibling", siblingPageID).Debugw("btree internal split")

	return idx.insertIntoParent(ctx, leftParent, grandparent, newSep, siblingPageID)
}

// splitInternal moves the upper half of left's entries (including the
// median, which is pulled up rather than kept by either side) into a
// freshly allocated sibling, reparenting the moved children.
func (idx *Index[T]) splitInternal(ctx context.Context, leftPageID pageid.ID, left *internalNode[T]) (T, pageid.ID, error) {
	var zero T

	g, rightPageID, err := idx.pool.NewPage(ctx)
	if err != nil {
		return zero, pageid.Invalid, err
	}

	mid := len(left.entries) / 2
	sep := left.entries[mid].Key

	rightEntries := append([]internalEntry[T]{}, left.entries[mid:]...)
	rightEntries[0].Key = zero
	left.entries = left.entries[:mid:mid]

	right := internalNode[T]{parent: left.parent, entries: rightEntries}

	for _, e := range right.entries {
		if err := idx.setParent(ctx, e.Child, rightPageID); err != nil {
			g.Done(false)
			return zero, pageid.Invalid, err
		}
	}

	marshalInternal(right, g.Frame().Data[:])
	g.Done(true)

	return sep, rightPageID, nil
}

// setParent fetches pid, overwrites its parent pointer and unpins it dirty.
// Used whenever a node's true parent changes after it was last written,
// which is always after it -- and never while it -- is pinned elsewhere.
func (idx *Index[T]) setParent(ctx context.Context, pid, newParent pageid.ID) error {
	g, err := idx.pool.FetchPage(ctx, pid)
	if err != nil {
		return fmt.Errorf("set parent of %d: %w", pid, err)
	}

	if peekTag(g.Frame().Data[:]) == tagLeaf {
		n := unmarshalLeaf[T](g.Frame().Data[:])
		n.parent = newParent
		marshalLeaf(n, g.Frame().Data[:])
	} else {
		n := unmarshalInternal[T](g.Frame().Data[:])
		n.parent = newParent
		marshalInternal(n, g.Frame().Data[:])
	}
	g.Done(true)
	return nil
}

// Delete is declared for API completeness but not implemented, matching
// the spec's documented limitation.
func (idx *Index[T]) Delete(ctx context.Context, key T) error {
	return ErrNotImplemented
}

// BFS returns the tree's pages level by level, for diagnostics and tests.
func (idx *Index[T]) BFS(ctx context.Context) ([][]pageid.ID, error) {
	if idx.IsEmpty() {
		return nil, nil
	}

	levels := [][]pageid.ID{{idx.root}}
	current := []pageid.ID{idx.root}

	for {
		var next []pageid.ID
		for _, pid := range current {
			g, err := idx.pool.FetchPage(ctx, pid)
			if err != nil {
				return nil, fmt.Errorf("bfs: %w", err)
			}
			if peekTag(g.Frame().Data[:]) == tagInternal {
				internal := unmarshalInternal[T](g.Frame().Data[:])
				for _, e := range internal.entries {
					next = append(next, e.Child)
				}
			}
			g.Done(false)
		}
		if len(next) == 0 {
			return levels, nil
		}
		levels = append(levels, next)
		current = next
	}
}

// RootIsLeaf reports whether the tree's current root page is a leaf.
func (idx *Index[T]) RootIsLeaf(ctx context.Context) (bool, error) {
	if idx.IsEmpty() {
		return false, fmt.Errorf("btree: empty tree has no root")
	}
	g, err := idx.pool.FetchPage(ctx, idx.root)
	if err != nil {
		return false, fmt.Errorf("root is leaf: %w", err)
	}
	isLeaf := peekTag(g.Frame().Data[:]) == tagLeaf
	g.Done(false)
	return isLeaf, nil
}
