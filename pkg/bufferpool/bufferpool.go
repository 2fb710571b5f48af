// Package bufferpool recycles byte buffers used to encode ledger instructions.
package bufferpool

import (
	"bytes"
	"sync"
)

const (
	initialSize = 1 << 10
	// maxRetainedSize keeps a single oversized payload from pinning memory in the pool.
	maxRetainedSize = 64 << 10
)

var pool = sync.Pool{
	New: func() any {
		return &Buffer{Buffer: bytes.NewBuffer(make([]byte, 0, initialSize))}
	},
}

type Buffer struct {
	*bytes.Buffer
}

// Get returns an empty buffer. Call Free when done with it.
func Get() *Buffer {
	buf := pool.Get().(*Buffer)
	buf.Reset()
	return buf
}

// Free returns the buffer to the pool. The buffer and slices returned by Bytes must not be used afterwards.
func (b *Buffer) Free() {
	if b.Cap() > maxRetainedSize {
		return
	}
	pool.Put(b)
}

// Clone returns a copy of the contents that stays valid after Free.
func (b *Buffer) Clone() []byte {
	return bytes.Clone(b.Bytes())
}
