package btree

import (
	"cmp"
	"encoding/binary"
	"math"
)

// Key enumerates the concrete key types this index can be instantiated
// over. Go generics cannot dispatch a marshal/compare routine purely by
// type parameter, so we close the set and switch on the concrete type
// wherever bytes or ordering are needed.
type Key interface {
	int32 | int64 | float32 | float64 | string
}

// Comparator orders two keys: negative if a < b, zero if equal, positive if
// a > b. The spec requires the tree to take one at construction rather than
// assume Go's built-in ordering, so a caller with unusual ordering needs
// (case-insensitive strings, reversed order, ...) can supply one; Default
// covers the common case.
type Comparator[T Key] func(a, b T) int

// Default returns the natural ascending comparator for T.
func Default[T Key]() Comparator[T] {
	return func(a, b T) int { return cmp.Compare(a, b) }
}

func keySize[T Key](k T) int {
	switch v := any(k).(type) {
	case int32, float32:
		_ = v
		return 4
	case int64, float64:
		_ = v
		return 8
	case string:
		return 4 + len(v)
	default:
		panic("btree: unsupported key type")
	}
}

func marshalKey[T Key](k T, buf []byte) int {
	switch v := any(k).(type) {
	case int32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return 4
	case int64:
		binary.LittleEndian.PutUint64(buf, uint64(v))
		return 8
	case float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		return 4
	case float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		return 8
	case string:
		binary.LittleEndian.PutUint32(buf, uint32(len(v)))
		copy(buf[4:], v)
		return 4 + len(v)
	default:
		panic("btree: unsupported key type")
	}
}

func unmarshalKey[T Key](buf []byte) (T, int) {
	var zero T
	switch any(zero).(type) {
	case int32:
		v := int32(binary.LittleEndian.Uint32(buf))
		return any(v).(T), 4
	case int64:
		v := int64(binary.LittleEndian.Uint64(buf))
		return any(v).(T), 8
	case float32:
		v := math.Float32frombits(binary.LittleEndian.Uint32(buf))
		return any(v).(T), 4
	case float64:
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf))
		return any(v).(T), 8
	case string:
		n := int(binary.LittleEndian.Uint32(buf))
		v := string(buf[4 : 4+n])
		return any(v).(T), 4 + n
	default:
		panic("btree: unsupported key type")
	}
}
