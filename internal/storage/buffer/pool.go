// Package buffer implements the buffer pool manager: a fixed array of
// frames backed by a free list, an extendible-hash page table and an LRU
// replacer, through which every page access in the kernel flows.
package buffer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/srdczk/CMU15-445/internal/storage/hash"
	"github.com/srdczk/CMU15-445/internal/storage/pageid"
	"github.com/srdczk/CMU15-445/pkg/lrucache"
)

// ErrPoolExhausted is returned when every frame is pinned and none can be
// evicted to satisfy a fetch or allocation.
var ErrPoolExhausted = fmt.Errorf("buffer pool: no free or evictable frame")

// Pool is the buffer pool manager described by the spec.
type Pool struct {
	disk   DiskManager
	logger *zap.SugaredLogger

	bucketSize int

	frames    []Frame
	freeList  []pageid.FrameID
	pageTable *hash.Table[pageid.ID, pageid.FrameID]
	replacer  *lrucache.Replacer[pageid.FrameID]

	mu sync.Mutex // pool-wide latch; covers every public method
}

// New creates a pool of poolSize frames backed by disk.
func New(poolSize int, disk DiskManager, opts ...Option) *Pool {
	p := &Pool{
		disk:       disk,
		logger:     zap.NewNop().Sugar(),
		bucketSize: DefaultBucketSize,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.frames = make([]Frame, poolSize)
	p.freeList = make([]pageid.FrameID, poolSize)
	for i := range p.frames {
		p.frames[i].PageID = pageid.Invalid
		p.freeList[i] = pageid.FrameID(poolSize - 1 - i) // pop from the end == front of the list
	}
	p.pageTable = hash.New[pageid.ID, pageid.FrameID](p.bucketSize, hashPageID)
	p.replacer = lrucache.New[pageid.FrameID]()

	return p
}

func hashPageID(id pageid.ID) uint64 { return hash.DefaultUint32Hash(uint32(id)) }

func (p *Pool) lock()   { p.mu.Lock() }
func (p *Pool) unlock() { p.mu.Unlock() }

// popFree pops the front of the free list, or reports false if empty.
func (p *Pool) popFree() (pageid.FrameID, bool) {
	if len(p.freeList) == 0 {
		return 0, false
	}
	n := len(p.freeList)
	id := p.freeList[n-1]
	p.freeList = p.freeList[:n-1]
	return id, true
}

// pickVictim selects a frame to reuse: free list first, then the replacer.
func (p *Pool) pickVictim() (pageid.FrameID, bool) {
	if id, ok := p.popFree(); ok {
		return id, true
	}
	return p.replacer.Victim()
}

// writebackIfDirty flushes a victim frame's current page before its tenant
// changes.
func (p *Pool) writebackIfDirty(ctx context.Context, fid pageid.FrameID) error {
	f := &p.frames[fid]
	if !f.Dirty {
		return nil
	}
	if err := p.disk.WritePage(ctx, f.PageID, f.Data[:]); err != nil {
		return fmt.Errorf("writeback page %d: %w", f.PageID, err)
	}
	f.Dirty = false
	return nil
}

// FetchPage pins and returns the frame holding id, loading it from disk if
// it is not already cached. Returns ErrPoolExhausted if no frame is
// available.
func (p *Pool) FetchPage(ctx context.Context, id pageid.ID) (*Guard, error) {
	p.lock()
	defer p.unlock()

	if fid, ok := p.pageTable.Find(id); ok {
		f := &p.frames[fid]
		f.PinCount++
		p.replacer.Erase(fid)
		p.logger.With("page", id).Debugw("buffer pool hit")
		return &Guard{pool: p, pageID: id, frame: f}, nil
	}

	fid, ok := p.pickVictim()
	if !ok {
		return nil, ErrPoolExhausted
	}

	if err := p.writebackIfDirty(ctx, fid); err != nil {
		p.replacer.Insert(fid)
		return nil, err
	}

	f := &p.frames[fid]
	if f.PageID != pageid.Invalid {
		p.pageTable.Remove(f.PageID)
	}
	p.pageTable.Insert(id, fid)

	if err := p.disk.ReadPage(ctx, id, f.Data[:]); err != nil {
		p.pageTable.Remove(id)
		f.reset()
		p.freeList = append(p.freeList, fid)
		return nil, fmt.Errorf("fetch page %d: %w", id, err)
	}
	f.PageID = id
	f.PinCount = 1
	f.Dirty = false

	p.logger.With("page", id).Debugw("buffer pool miss, loaded from disk")

	return &Guard{pool: p, pageID: id, frame: f}, nil
}

// UnpinPage decrements the pin count for id, OR-ing in isDirty, and moves
// the frame into the replacer once the count reaches zero. Returns false if
// id is not resident or already unpinned.
func (p *Pool) UnpinPage(id pageid.ID, isDirty bool) bool {
	p.lock()
	defer p.unlock()

	fid, ok := p.pageTable.Find(id)
	if !ok {
		return false
	}

	f := &p.frames[fid]
	f.Dirty = f.Dirty || isDirty

	if f.PinCount <= 0 {
		return false
	}

	f.PinCount--
	if f.PinCount == 0 {
		p.replacer.Insert(fid)
	}
	return true
}

// FlushPage writes id's frame to disk if dirty. Returns false if id is not
// resident.
func (p *Pool) FlushPage(ctx context.Context, id pageid.ID) (bool, error) {
	p.lock()
	defer p.unlock()

	fid, ok := p.pageTable.Find(id)
	if !ok {
		return false, nil
	}

	f := &p.frames[fid]
	if f.PageID == pageid.Invalid {
		return false, nil
	}

	if f.Dirty {
		if err := p.disk.WritePage(ctx, id, f.Data[:]); err != nil {
			return false, fmt.Errorf("flush page %d: %w", id, err)
		}
		f.Dirty = false
	}
	return true, nil
}

// NewPage allocates a fresh page id from the disk manager, pins it in a
// freshly zeroed frame and returns both. Returns ErrPoolExhausted if no
// frame is available.
func (p *Pool) NewPage(ctx context.Context) (*Guard, pageid.ID, error) {
	p.lock()
	defer p.unlock()

	fid, ok := p.pickVictim()
	if !ok {
		return nil, pageid.Invalid, ErrPoolExhausted
	}

	if err := p.writebackIfDirty(ctx, fid); err != nil {
		p.replacer.Insert(fid)
		return nil, pageid.Invalid, err
	}

	id, err := p.disk.AllocatePage(ctx)
	if err != nil {
		if p.frames[fid].PageID != pageid.Invalid {
			p.replacer.Insert(fid)
		} else {
			p.freeList = append(p.freeList, fid)
		}
		return nil, pageid.Invalid, fmt.Errorf("allocate page: %w", err)
	}

	f := &p.frames[fid]
	if f.PageID != pageid.Invalid {
		p.pageTable.Remove(f.PageID)
	}
	p.pageTable.Insert(id, fid)

	f.reset()
	f.PageID = id
	f.PinCount = 1

	p.logger.With("page", id).Debugw("buffer pool allocated new page")

	return &Guard{pool: p, pageID: id, frame: f}, id, nil
}

// DeletePage removes id from the pool and asks the disk manager to
// deallocate it. Returns false without deallocating if id is still pinned.
func (p *Pool) DeletePage(ctx context.Context, id pageid.ID) (bool, error) {
	p.lock()
	defer p.unlock()

	if fid, ok := p.pageTable.Find(id); ok {
		f := &p.frames[fid]
		if f.PinCount > 0 {
			return false, nil
		}
		p.replacer.Erase(fid)
		p.pageTable.Remove(id)
		f.reset()
		p.freeList = append(p.freeList, fid)
	}

	if err := p.disk.DeallocatePage(ctx, id); err != nil {
		return false, fmt.Errorf("deallocate page %d: %w", id, err)
	}
	return true, nil
}

// Size returns the pool's fixed frame count.
func (p *Pool) Size() int { return len(p.frames) }

// InPageTable reports whether id currently has a resident frame, for tests
// asserting the universal invariants.
func (p *Pool) InPageTable(id pageid.ID) bool {
	p.lock()
	defer p.unlock()
	_, ok := p.pageTable.Find(id)
	return ok
}

// PinCount returns the current pin count for a resident page, for tests.
func (p *Pool) PinCount(id pageid.ID) (int, bool) {
	p.lock()
	defer p.unlock()
	fid, ok := p.pageTable.Find(id)
	if !ok {
		return 0, false
	}
	return p.frames[fid].PinCount, true
}

// TotalPinCount sums the pin counts across every frame, for tests asserting
// that a sequence of operations left nothing pinned behind.
func (p *Pool) TotalPinCount() int {
	p.lock()
	defer p.unlock()
	total := 0
	for i := range p.frames {
		total += p.frames[i].PinCount
	}
	return total
}
