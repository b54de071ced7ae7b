// Package buffer provides reference-counted byte buffers for cached wire
// payloads. A Buffer starts with a single reference owned by its creator;
// every additional holder must Retain before reading and Release when done.
// The holder that drops the count to zero frees the underlying bytes.
//
// Misuse (retaining or reading a freed buffer, releasing more times than
// retained) is a programming error and panics rather than corrupting the
// cache.
package buffer

import (
	"fmt"
	"sync/atomic"
)

// Buffer is an immutable byte block with an explicit reference count.
// The bytes are written once at construction and never mutated; only the
// count changes afterwards.
type Buffer struct {
	refs atomic.Int32
	data []byte
}

// New wraps data in a Buffer with a reference count of one. The caller owns
// that initial reference and must Release it eventually. The slice must not
// be modified after being handed over.
func New(data []byte) *Buffer {
	b := &Buffer{data: data}
	b.refs.Store(1)
	return b
}

// Retain increments the reference count and returns the same buffer for
// convenient chaining. Panics if the buffer has already been freed.
func (b *Buffer) Retain() *Buffer {
	for {
		n := b.refs.Load()
		if n <= 0 {
			panic("buffer: retain of freed buffer")
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return b
		}
	}
}

// Release drops one reference. When the count reaches zero the bytes are
// freed and any further access panics. Panics on release of an already freed
// buffer.
func (b *Buffer) Release() {
	n := b.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("buffer: release of freed buffer (refs=%d)", n))
	}
	if n == 0 {
		b.data = nil
	}
}

// Bytes returns the underlying bytes. The slice is shared and must be
// treated as read-only. Panics if the buffer has been freed.
func (b *Buffer) Bytes() []byte {
	if b.refs.Load() <= 0 {
		panic("buffer: read of freed buffer")
	}
	return b.data
}

// Len returns the number of bytes held. Safe to call on a freed buffer
// (returns 0).
func (b *Buffer) Len() int {
	if b.refs.Load() <= 0 {
		return 0
	}
	return len(b.data)
}

// RefCount returns the current reference count. Intended for lifecycle
// assertions and tests, not for synchronization.
func (b *Buffer) RefCount() int {
	return int(b.refs.Load())
}
