// Package header implements the directory page at pageid.Header: a small,
// ordered name -> root-page-id mapping that the B+-tree index consults to
// find (or record) its root.
package header

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tidwall/btree"

	"github.com/srdczk/CMU15-445/internal/storage/buffer"
	"github.com/srdczk/CMU15-445/internal/storage/pageid"
)

type record struct {
	name string
	root pageid.ID
}

func recordLess(a, b record) bool { return a.name < b.name }

// Directory is the header page's (name, root page id) registry. Every
// operation round-trips through the buffer pool: fetch, decode, mutate,
// encode, unpin -- the header page is pinned only for the duration of one
// call, per the spec.
type Directory struct {
	pool *buffer.Pool
}

// New wraps pool's header page as a Directory. There is no separate
// creation step: every call fetches pageid.Header (page 0) through the
// pool like any ordinary page, and a page 0 that was never written reads
// back as zeros, which decodes as an empty directory.
func New(pool *buffer.Pool) *Directory {
	return &Directory{pool: pool}
}

// GetRecord returns the root page id registered for name.
func (d *Directory) GetRecord(ctx context.Context, name string) (pageid.ID, bool, error) {
	tree, g, err := d.load(ctx)
	if err != nil {
		return pageid.Invalid, false, err
	}
	defer g.Done(false)

	r, ok := tree.Get(record{name: name})
	if !ok {
		return pageid.Invalid, false, nil
	}
	return r.root, true, nil
}

// InsertRecord adds a new (name, root) pair, failing if name is already
// registered.
func (d *Directory) InsertRecord(ctx context.Context, name string, root pageid.ID) error {
	tree, g, err := d.load(ctx)
	if err != nil {
		return err
	}

	if _, ok := tree.Get(record{name: name}); ok {
		g.Done(false)
		return fmt.Errorf("header directory: record %q already exists", name)
	}

	tree.Set(record{name: name, root: root})
	d.store(g, tree)
	return nil
}

// UpdateRecord overwrites the root page id for an existing name, inserting
// it if absent (mirroring update_root_page_id's dual insert/update role).
func (d *Directory) UpdateRecord(ctx context.Context, name string, root pageid.ID) error {
	tree, g, err := d.load(ctx)
	if err != nil {
		return err
	}

	tree.Set(record{name: name, root: root})
	d.store(g, tree)
	return nil
}

// Names returns every registered index name in ascending order.
func (d *Directory) Names(ctx context.Context) ([]string, error) {
	tree, g, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	defer g.Done(false)

	names := make([]string, 0, tree.Len())
	tree.Scan(func(r record) bool {
		names = append(names, r.name)
		return true
	})
	return names, nil
}

func (d *Directory) load(ctx context.Context) (*btree.BTreeG[record], *buffer.Guard, error) {
	g, err := d.pool.FetchPage(ctx, pageid.Header)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch header page: %w", err)
	}

	tree := btree.NewBTreeG(recordLess)
	for _, r := range decode(g.Frame().Data[:]) {
		tree.Set(r)
	}
	return tree, g, nil
}

func (d *Directory) store(g *buffer.Guard, tree *btree.BTreeG[record]) {
	records := make([]record, 0, tree.Len())
	tree.Scan(func(r record) bool {
		records = append(records, r)
		return true
	})
	encode(records, g.Frame().Data[:])
	g.Done(true)
}

// encode/decode use a simple length-prefixed layout: a uint32 record count,
// then for each record a uint16 name length, the name bytes, and a uint32
// root page id. This is a concrete stand-in for the spec's "implementation
// defined, stable within a database instance" payload codec.
func encode(records []record, buf []byte) {
	for i := range buf {
		buf[i] = 0
	}

	i := 0
	binary.LittleEndian.PutUint32(buf[i:], uint32(len(records)))
	i += 4

	for _, r := range records {
		nameLen := len(r.name)
		binary.LittleEndian.PutUint16(buf[i:], uint16(nameLen))
		i += 2
		copy(buf[i:], r.name)
		i += nameLen
		binary.LittleEndian.PutUint32(buf[i:], uint32(r.root))
		i += 4
	}
}

func decode(buf []byte) []record {
	i := 0
	count := binary.LittleEndian.Uint32(buf[i:])
	i += 4

	records := make([]record, 0, count)
	for n := uint32(0); n < count; n++ {
		nameLen := int(binary.LittleEndian.Uint16(buf[i:]))
		i += 2
		name := string(buf[i : i+nameLen])
		i += nameLen
		root := pageid.ID(binary.LittleEndian.Uint32(buf[i:]))
		i += 4
		records = append(records, record{name: name, root: root})
	}
	return records
}
