package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "worker.log")

	logger, cleanup, err := New(Options{Level: "info", File: path, Console: zapcore.AddSync(&console)})
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("job completed", zap.String("job_id", "j1"))
	cleanup()

	assert.Contains(t, console.String(), "job completed")
	assert.NotContains(t, console.String(), "hidden")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "job completed", entry["message"])
	assert.Equal(t, "j1", entry["job_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewJSONConsole(t *testing.T) {
	var console bytes.Buffer
	logger, cleanup, err := New(Options{Level: "debug", JSON: true, Console: zapcore.AddSync(&console)})
	require.NoError(t, err)
	logger.Debug("probe")
	cleanup()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(console.Bytes()), &entry))
	assert.Equal(t, "probe", entry["message"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "verbose"})
	assert.Error(t, err)
}
