package btree

import "github.com/srdczk/CMU15-445/internal/storage/pageid"

// RID is the record identifier stored as a B+-tree leaf value: the page and
// in-page slot where the actual row lives.
type RID struct {
	PageID pageid.ID
	Slot   uint32
}
