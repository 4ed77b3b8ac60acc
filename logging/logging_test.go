package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/config"
	"github.com/warp/loyalty-engine/logging"
)

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(&buf, config.LogConfig{Level: slog.LevelInfo, Format: "json"}))

	logger.Debug("hidden")
	logger.Info("purchase recorded", slog.String("client_id", "c-1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), "exactly one JSON line")
	assert.Equal(t, "purchase recorded", line["msg"])
	assert.Equal(t, "c-1", line["client_id"])
}

func TestNewHandler_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(&buf, config.LogConfig{Level: slog.LevelWarn, Format: "text"}))

	logger.Info("skipped")
	logger.Warn("purchase rejected")

	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "msg=\"purchase rejected\"")
}

func TestNew_File_WritesThroughRotator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loyalty.log")
	cfg := config.Default().Log
	cfg.File = path

	logger, closer := logging.New(cfg)
	logger.Info("server starting")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "server starting")
}
