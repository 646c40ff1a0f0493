package control_test

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/control"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c := control.DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, time.Second, c.PollTimeout)
	assert.Equal(t, 1024, c.EventCapacity)
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*control.Config){
		"event capacity": func(c *control.Config) { c.EventCapacity = 0 },
		"read buffer":    func(c *control.Config) { c.ReadBufferSize = -1 },
		"addr":           func(c *control.Config) { c.Addr = "" },
	} {
		t.Run(name, func(t *testing.T) {
			c := control.DefaultConfig()
			mutate(&c)
			assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(c.Validate()))
		})
	}
}

func TestConfigFlagsAndEnv(t *testing.T) {
	c := control.DefaultConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-addr", "0.0.0.0:9000", "-event-capacity", "64"}))
	assert.Equal(t, "0.0.0.0:9000", c.Addr)
	assert.Equal(t, 64, c.EventCapacity)

	t.Setenv("RT_POLL_TIMEOUT", "250ms")
	t.Setenv("RT_READ_BUFFER", "512")
	t.Setenv("RT_LOG_LEVEL", "debug")
	require.NoError(t, c.ApplyEnv("RT"))
	assert.Equal(t, 250*time.Millisecond, c.PollTimeout)
	assert.Equal(t, 512, c.ReadBufferSize)
	assert.Equal(t, "debug", c.LogLevel)

	t.Setenv("RT_EVENT_CAPACITY", "lots")
	assert.Error(t, c.ApplyEnv("RT"))
}

func TestConfigStoreUpdate(t *testing.T) {
	_, err := control.NewConfigStore(control.Config{})
	require.Error(t, err)

	cs, err := control.NewConfigStore(control.DefaultConfig())
	require.NoError(t, err)
	var seen []control.Config
	cs.OnReload(func(c control.Config) { seen = append(seen, c) })

	require.NoError(t, cs.Update(func(c *control.Config) { c.EventCapacity = 8 }))
	assert.Equal(t, 8, cs.Snapshot().EventCapacity)
	require.Len(t, seen, 1)

	require.Error(t, cs.Update(func(c *control.Config) { c.EventCapacity = 0 }))
	assert.Equal(t, 8, cs.Snapshot().EventCapacity, "invalid update discarded")
	assert.Len(t, seen, 1)
}

func TestMetricsRegistry(t *testing.T) {
	mr := control.NewMetricsRegistry()
	assert.True(t, mr.Updated().IsZero())
	mr.Set("a", 1)
	mr.SetMany(map[string]any{"b": 2, "c": "x"})
	v, ok := mr.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	snap := mr.GetSnapshot()
	assert.Len(t, snap, 3)
	snap["a"] = 99
	v, _ = mr.Get("a")
	assert.Equal(t, 1, v, "snapshot is a copy")
	assert.False(t, mr.Updated().IsZero())
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	dp.RegisterProbe("b", func() any { return 2 })
	dp.RegisterProbe("a", func() any { return 1 })
	dp.RegisterProbe("bad", func() any { panic("nope") })
	assert.Equal(t, []string{"a", "b", "bad"}, dp.Names())

	state := dp.DumpState()
	assert.Equal(t, 1, state["a"])
	assert.Contains(t, state["bad"], "nope")

	dp.UnregisterProbe("bad")
	assert.NotContains(t, dp.DumpState(), "bad")

	control.RegisterPlatformProbes(dp)
	assert.Contains(t, dp.Names(), "platform.cpus")
}
