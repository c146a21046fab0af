package buffer

import "go.uber.org/zap"

// Option configures a Pool at construction time, following this project's
// functional-options convention.
type Option func(*Pool)

// DefaultBucketSize is the extendible hash page table's default per-bucket
// capacity.
const DefaultBucketSize = 2

// WithBucketSize sets the page table's per-bucket capacity.
func WithBucketSize(size int) Option {
	return func(p *Pool) {
		if size > 0 {
			p.bucketSize = size
		}
	}
}

// WithLogger attaches a structured logger; the pool logs page fetches (hit
// or miss) and new-page allocations at Debug. Evictions and writebacks are
// not logged. Without this option the pool logs nothing.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}
