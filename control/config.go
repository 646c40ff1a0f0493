// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with validated updates and reload propagation.

package control

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/momentics/hioload-reactor/api"
)

// Config holds the tunables shared by the reactor runtime and its binaries.
type Config struct {
	Addr           string
	PollTimeout    time.Duration
	EventCapacity  int
	ReadBufferSize int
	LogLevel       string
}

// DefaultConfig mirrors the reactor defaults: a 1024 event batch and a one
// second wait timeout.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8000",
		PollTimeout:    time.Second,
		EventCapacity:  1024,
		ReadBufferSize: 4096,
		LogLevel:       "info",
	}
}

// Validate rejects values the runtime cannot work with.
func (c Config) Validate() error {
	switch {
	case c.EventCapacity <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "event capacity must be positive").WithContext("event_capacity", c.EventCapacity)
	case c.ReadBufferSize <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "read buffer size must be positive").WithContext("read_buffer_size", c.ReadBufferSize)
	case c.Addr == "":
		return api.NewError(api.ErrCodeInvalidArgument, "address must not be empty")
	}
	return nil
}

// BindFlags registers flags for every field, defaulting to c's values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "TCP address")
	fs.DurationVar(&c.PollTimeout, "poll-timeout", c.PollTimeout, "reactor wait timeout (negative blocks indefinitely)")
	fs.IntVar(&c.EventCapacity, "event-capacity", c.EventCapacity, "readiness events fetched per wait")
	fs.IntVar(&c.ReadBufferSize, "read-buffer", c.ReadBufferSize, "per-read buffer size in bytes")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (trace, debug, info, warning, err)")
}

// ApplyEnv overrides fields from PREFIX_ADDR, PREFIX_POLL_TIMEOUT,
// PREFIX_EVENT_CAPACITY, PREFIX_READ_BUFFER and PREFIX_LOG_LEVEL.
func (c *Config) ApplyEnv(prefix string) error {
	if v, ok := os.LookupEnv(prefix + "_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := os.LookupEnv(prefix + "_POLL_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s_POLL_TIMEOUT: %w", prefix, err)
		}
		c.PollTimeout = d
	}
	if v, ok := os.LookupEnv(prefix + "_EVENT_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s_EVENT_CAPACITY: %w", prefix, err)
		}
		c.EventCapacity = n
	}
	if v, ok := os.LookupEnv(prefix + "_READ_BUFFER"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s_READ_BUFFER: %w", prefix, err)
		}
		c.ReadBufferSize = n
	}
	if v, ok := os.LookupEnv(prefix + "_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return nil
}

// ConfigStore holds the current Config with snapshot reads and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(Config)
}

// NewConfigStore initializes a store with initial, which must be valid.
func NewConfigStore(initial Config) (*ConfigStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &ConfigStore{config: initial}, nil
}

// Snapshot returns a copy of the current config.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// Update applies fn to a copy, validates it, stores it and dispatches reload.
func (cs *ConfigStore) Update(fn func(*Config)) error {
	cs.mu.Lock()
	next := cs.config
	fn(&next)
	if err := next.Validate(); err != nil {
		cs.mu.Unlock()
		return err
	}
	cs.config = next
	listeners := append([]func(Config){}, cs.listeners...)
	cs.mu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// OnReload registers a listener called synchronously after each Update.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
