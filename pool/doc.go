// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable buffers for connection handlers. BytePool hands out fixed-size
// read buffers; SyncPool is a typed wrapper over sync.Pool.
package pool
