// Package buffers provides reusable byte buffers for transfer chunk
// streaming. Pooling keeps memory use bounded and independent of file size
// while avoiding per-chunk heap allocations during large batches.
package buffers

import (
	"sync"
)

// ChunkSize is the fixed transfer chunk size. Progress events are emitted
// after every chunk, so the size also bounds progress granularity.
const ChunkSize = 64 * 1024

var chunkPool = &sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ChunkSize)
		return &buf
	},
}

// GetChunk retrieves a ChunkSize buffer from the pool. Return it with
// PutChunk when done.
//
// Usage:
//
//	buf := buffers.GetChunk()
//	defer buffers.PutChunk(buf)
//	n, err := src.Read(*buf)
//	// use (*buf)[:n]
func GetChunk() *[]byte {
	return chunkPool.Get().(*[]byte)
}

// PutChunk returns a buffer to the pool. Only correctly sized buffers are
// pooled; the buffer must not be used after this call.
func PutChunk(buf *[]byte) {
	if buf != nil && len(*buf) == ChunkSize {
		chunkPool.Put(buf)
	}
}
