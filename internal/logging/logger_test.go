package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Debug().Str("dish", "d1").Msg("embedded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "d1", entry["dish"])
	assert.Equal(t, "embedded", entry["message"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestCtxCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	ctx := WithCorrelationID(context.Background(), "abc12345")
	Ctx(ctx).Info().Msg("rated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc12345", entry["correlation_id"])
}

func TestEnsureCorrelationID(t *testing.T) {
	ctx := EnsureCorrelationID(context.Background())
	id := CorrelationID(ctx)
	assert.Len(t, id, 8)

	assert.Equal(t, id, CorrelationID(EnsureCorrelationID(ctx)))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	l := Component("worker")
	l.Info().Msg("started")
	assert.Contains(t, buf.String(), `"component":"worker"`)
}
