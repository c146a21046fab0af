package btree

import "go.uber.org/zap"

// Option configures an Index at construction, following this project's
// functional-options convention.
type Option[T Key] func(*Index[T])

// DefaultLeafMaxSize and DefaultInternalMaxSize are deliberately small so
// splits happen quickly in tests, matching the source's own test defaults.
const (
	DefaultLeafMaxSize     = 4
	DefaultInternalMaxSize = 4
)

// WithLeafMaxSize overrides the leaf entry-count overflow threshold.
func WithLeafMaxSize[T Key](n int) Option[T] {
	return func(idx *Index[T]) {
		if n > 1 {
			idx.leafMaxSize = n
		}
	}
}

// WithInternalMaxSize overrides the internal child-count overflow
// threshold.
func WithInternalMaxSize[T Key](n int) Option[T] {
	return func(idx *Index[T]) {
		if n > 2 {
			idx.internalMaxSize = n
		}
	}
}

// WithLogger attaches a structured logger for split/lookup diagnostics.
func WithLogger[T Key](logger *zap.SugaredLogger) Option[T] {
	return func(idx *Index[T]) {
		if logger != nil {
			idx.logger = logger
		}
	}
}
