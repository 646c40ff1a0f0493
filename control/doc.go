// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, configuration control, and debug introspection layer for
// the reactor core.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads and validated atomic updates with reload listeners
//   - Metrics counters published by the reactor thread
//   - State export, debug hooks, and probe registration
package control
