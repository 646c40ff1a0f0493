// File: api/control.go
// Package api defines the metrics sink contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Metrics receives runtime counters published by the reactor and executor.
type Metrics interface {
	Set(key string, value any)
	SetMany(values map[string]any)
	Get(key string) (any, bool)
	GetSnapshot() map[string]any
}
