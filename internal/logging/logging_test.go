package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "phoenix.log")
	l, closer, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	cl := Component(l, "warmup")
	cl.Info().Str("inbox", "a@x.com").Msg("sent")
	l.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"warmup"`)
	assert.Contains(t, string(data), `"message":"sent"`)
	assert.NotContains(t, string(data), "hidden")
}
