package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONAddsServiceAndEnv(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{ServiceName: "warehouse", Env: "docker", Output: &buf})
	require.NoError(t, err)

	logger.Info("hello")
	Sync(logger)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warehouse", line["service"])
	require.Equal(t, "docker", line["env"])
	require.Equal(t, "hello", line["msg"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{ServiceName: "warehouse", Env: "docker", Level: "warn", Output: &buf})
	require.NoError(t, err)

	logger.Info("skipped")
	require.Zero(t, buf.Len())

	logger.Warn("kept")
	require.Contains(t, buf.String(), "kept")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	require.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	require.Error(t, err)
}
