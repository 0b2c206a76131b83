package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug", "text").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, New("", "text").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, New("error", "text").Enabled(context.Background(), slog.LevelWarn))
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json").With("flow", "create_agent")
	log.Info("step done", "step", "db_write")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "step done", line["msg"])
	assert.Equal(t, "create_agent", line["flow"])
	assert.Equal(t, "db_write", line["step"])
}
