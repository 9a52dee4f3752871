package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")

	logger.Debug().Msg("hidden")
	logger.Info().Int("records", 14).Msg("dataset loaded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dataset loaded", entry["message"])
	assert.Equal(t, float64(14), entry["records"])
	assert.Contains(t, entry, "time")
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug", "console")

	logger.Debug().Str("group", "Lakeside Hospital").Msg("skipped")
	assert.Contains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "Lakeside Hospital")
}
