package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// DefaultUint32Hash hashes a uint32 key (page ids are the common case) by
// running its little-endian bytes through xxhash. Callers with their own
// key type and a reason to avoid the byte-encoding step can pass their own
// hash function to New instead.
func DefaultUint32Hash(key uint32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], key)
	return xxhash.Sum64(buf[:])
}

// DefaultStringHash hashes a string key through xxhash.
func DefaultStringHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// DefaultInt64Hash hashes an int64 key through xxhash.
func DefaultInt64Hash(key int64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	return xxhash.Sum64(buf[:])
}
