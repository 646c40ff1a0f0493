// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
)

// SyncPool wraps sync.Pool for generic usage.
type SyncPool[T any] struct {
	pool *sync.Pool
}

var _ api.ObjectPool[int] = (*SyncPool[int])(nil)

// NewSyncPool creates a SyncPool that calls creator when it is empty.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (sp *SyncPool[T]) Get() T { return sp.pool.Get().(T) }

func (sp *SyncPool[T]) Put(obj T) { sp.pool.Put(obj) }

// BytePool recycles buffers of one fixed size. Pooled buffers travel in
// *[]byte boxes; emptied boxes are recycled through a second pool so a
// steady Get/Put cycle does not allocate.
type BytePool struct {
	size   int
	bufs   *SyncPool[*[]byte]
	boxes  *SyncPool[*[]byte]
	allocs atomic.Int64
	reuses atomic.Int64
}

var _ api.BytePool = (*BytePool)(nil)

// NewBytePool panics if size is not positive.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		panic("pool: non-positive buffer size")
	}
	b := &BytePool{size: size}
	b.bufs = NewSyncPool(func() *[]byte {
		b.allocs.Add(1)
		buf := make([]byte, size)
		return &buf
	})
	b.boxes = NewSyncPool(func() *[]byte { return new([]byte) })
	return b
}

// Size returns the length of buffers returned by Get.
func (b *BytePool) Size() int { return b.size }

// Get returns a buffer of length Size. Its contents are unspecified.
func (b *BytePool) Get() []byte {
	box := b.bufs.Get()
	buf := (*box)[:b.size]
	*box = nil
	b.boxes.Put(box)
	return buf
}

// Put returns buf to the pool. Buffers smaller than Size are dropped.
func (b *BytePool) Put(buf []byte) {
	if cap(buf) < b.size {
		return
	}
	b.reuses.Add(1)
	box := b.boxes.Get()
	*box = buf[:b.size]
	b.bufs.Put(box)
}

// Stats reports how many buffers were allocated and how many were returned.
func (b *BytePool) Stats() (allocs, returned int64) {
	return b.allocs.Load(), b.reuses.Load()
}
