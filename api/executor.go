// Package api
// Author: momentics
//
// Executor contract for task dispatch and eventloop integration.

package api

// Spawner accepts units of work that run to completion on an executor.
type Spawner interface {
	// Submit schedules task to run once on the executor goroutine.
	Submit(task func()) error

	// Pending returns the number of tasks not yet finished.
	Pending() int
}
