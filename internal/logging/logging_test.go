package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]logiface.Level{
		"debug":   logiface.LevelDebug,
		"WARN":    logiface.LevelWarning,
		" info ":  logiface.LevelInformational,
		"error":   logiface.LevelError,
		"trace":   logiface.LevelTrace,
		"off":     logiface.LevelDisabled,
		"":        logiface.LevelInformational,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelInformational)
	l.Info().Str("component", "reactor").Int("fd", 7).Log("registered")
	l.Debug().Log("filtered")
	l.Err().Err(errors.New("boom")).Log("failed")

	out := buf.String()
	assert.Contains(t, out, `"component":"reactor"`)
	assert.Contains(t, out, `"msg":"registered"`)
	assert.Contains(t, out, `"msg":"failed"`)
	assert.NotContains(t, out, "filtered")
}

func TestNilLoggerDiscards(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info().Str("k", "v").Log("nothing")
	})
}
