package utils

import "sync"

// Most reads in the decoder are block/member headers (a few dozen bytes);
// 256 avoids a reallocation for the common case without over-reserving for
// the rare multi-megabyte mesh or image payload.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 256)
	},
}

// GetBuffer returns a zeroed byte slice of exactly size bytes, reused from
// the pool when possible.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	buf = buf[:size]
	clear(buf)
	return buf
}

// ReleaseBuffer returns a buffer to the pool for reuse.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	bufferPool.Put(buf[:0])
}
