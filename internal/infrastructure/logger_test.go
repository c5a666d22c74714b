package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuropipe/internal/config"
)

func TestNewLogger_InjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.InfoContext(ctx, "job_started")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "job_started", record["msg"])
	assert.Equal(t, "trace-123", record["trace_id"])
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestInitializeLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "neuropipe.log")
	logger, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "file", FilePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseLogFile() })

	WithComponent(logger, "coordinator").Debug("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"coordinator"`)
	assert.Same(t, logger, slog.Default())
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)

	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing id is kept")
}

func TestDetachedContext(t *testing.T) {
	ctx, cancel := context.WithCancel(WithTraceID(context.Background(), "abc"))
	detached := DetachedContext(ctx)
	cancel()

	assert.NoError(t, detached.Err())
	assert.Equal(t, "abc", GetTraceID(detached))
}
