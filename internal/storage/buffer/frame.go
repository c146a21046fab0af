package buffer

import "github.com/srdczk/CMU15-445/internal/storage/pageid"

// Frame is a fixed-size mutable cell holding one page's bytes plus the
// metadata the pool needs to manage it.
type Frame struct {
	PageID   pageid.ID
	Data     [PageSize]byte
	PinCount int
	Dirty    bool
}

func (f *Frame) reset() {
	f.PageID = pageid.Invalid
	f.PinCount = 0
	f.Dirty = false
	for i := range f.Data {
		f.Data[i] = 0
	}
}

// Guard is the scoped pin/unpin handle described in the spec's design
// notes: FetchPage/NewPage return a Guard instead of a bare frame, and the
// caller unpins by calling Done with an accurate dirty flag. This replaces
// the manual fetch/mutate/unpin dance -- and the class of unpin-leak bugs it
// invites -- with a single deferred call.
type Guard struct {
	pool   *Pool
	pageID pageid.ID
	frame  *Frame
	done   bool
}

// Frame exposes the underlying frame for reading/writing its payload.
func (g *Guard) Frame() *Frame { return g.frame }

// PageID returns the id of the page this guard is pinning.
func (g *Guard) PageID() pageid.ID { return g.pageID }

// Done unpins the frame, ORing isDirty into the frame's dirty flag. Only the
// first call unpins; calling it again is a no-op.
func (g *Guard) Done(isDirty bool) {
	if g.done {
		return
	}
	g.done = true
	g.pool.UnpinPage(g.pageID, isDirty)
}
