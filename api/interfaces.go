// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

// BytePool defines a reusable buffer pool.
type BytePool interface {
	Get() []byte
	Put([]byte)
}

// ObjectPool defines a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}
