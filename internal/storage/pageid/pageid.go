// Package pageid defines the page and frame identifier types shared by the
// buffer pool, the extendible hash page table and the B+-tree index, so that
// none of those packages need to import each other just to talk about ids.
package pageid

import "math"

// ID identifies a page known to the disk manager. It is opaque outside this
// module: callers must not assume anything about its value beyond equality
// and the two sentinels below.
type ID uint32

// Invalid is the "no page" sentinel. It is distinct from Header, which is a
// real, addressable page.
const Invalid ID = math.MaxUint32

// Header is the fixed id of the directory page that records index-name to
// root-page-id pairs.
const Header ID = 0

// FrameID identifies a slot in the buffer pool's frame array.
type FrameID int

// InvalidFrame is returned where no frame handle applies.
const InvalidFrame FrameID = -1
