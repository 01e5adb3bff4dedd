package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_AddsModuleField(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("debug", &buf)
	t.Cleanup(func() { Init("info") })

	log := Module("chat")
	log.Info().Str("thread_id", "t1").Msg("thread created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "chat", line["module"])
	assert.Equal(t, "t1", line["thread_id"])
	assert.Equal(t, "thread created", line["message"])
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("verbose", &buf)
	t.Cleanup(func() { Init("info") })

	Log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	Log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}
