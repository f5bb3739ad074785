package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := Setup(Config{Level: "DEBUG", Output: &buf})
	require.NoError(t, err)
	defer cleanup()

	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	logger.Debug().Str("file", "root.yaml").Msg("config classified")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "config classified", entry["message"])
	require.Equal(t, "root.yaml", entry["file"])
	require.Contains(t, entry, "time")
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := Setup(Config{Format: "text", Output: &buf})
	require.NoError(t, err)
	defer cleanup()

	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	logger.Info().Msg("hello")
	logger.Debug().Msg("hidden")
	require.Contains(t, buf.String(), "hello")
	require.NotContains(t, buf.String(), "hidden")
}

func TestSetupRejectsInvalidSettings(t *testing.T) {
	_, _, err := Setup(Config{Level: "loud"})
	require.Error(t, err)

	_, _, err = Setup(Config{Format: "xml"})
	require.Error(t, err)

	_, _, err = Setup(Config{Loki: LokiConfig{Enabled: true}})
	require.Error(t, err)
}
