package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "test message"

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name          string
		level         string
		expectedLevel zerolog.Level
	}{
		{name: "debug", level: "debug", expectedLevel: zerolog.DebugLevel},
		{name: "warn", level: "warn", expectedLevel: zerolog.WarnLevel},
		{name: "invalid_level_defaults_to_info", level: "loud", expectedLevel: zerolog.InfoLevel},
		{name: "empty_level_defaults_to_info", level: "", expectedLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(&buf, tt.level, false)
			assert.Equal(t, tt.expectedLevel, l.zlog.GetLevel())
		})
	}
}

func TestNewWithWriterJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", false)

	l.Info().Str("method", "GET").Int("status", 200).Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, testMessage, entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestNewWithWriterSuppressesBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", false)

	l.Info().Msg("hidden")
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", true)

	l.Info().Msg(testMessage)

	assert.Contains(t, buf.String(), testMessage)
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Error().Err(errors.New("boom")).Str("k", "v").Msg("ignored")
		l.WithFields(map[string]any{"a": 1}).Info().Msg("ignored")
	})
}

func TestWithFieldsFiltersSensitiveValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", false)

	l.WithFields(map[string]any{
		"client":        "billing",
		"authorization": "Bearer abc",
	}).Info().Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "billing", entry["client"])
	assert.Equal(t, DefaultMaskValue, entry["authorization"])
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", false)

	t.Run("non context value returns same logger", func(t *testing.T) {
		assert.Same(t, l, l.WithContext("not a context"))
	})

	t.Run("context without logger returns same logger", func(t *testing.T) {
		assert.Same(t, l, l.WithContext(context.Background()))
	})

	t.Run("context logger is used", func(t *testing.T) {
		var ctxBuf bytes.Buffer
		other := NewWithWriter(&ctxBuf, "info", false)
		ctx := other.Context(context.Background())

		l.WithContext(ctx).Info().Msg("from context")
		assert.Contains(t, ctxBuf.String(), "from context")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestEventFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug", false)

	l.Debug().
		Int64("size", 42).
		Bool("mocked", true).
		Dur("elapsed", 1500*time.Millisecond).
		Bytes("body", []byte("raw")).
		Interface("headers", map[string]any{"Accept": "application/json", "Authorization": "Basic dXNlcjpwYXNz"}).
		Msgf("attempt %d", 2)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "attempt 2", entry["message"])
	assert.Equal(t, float64(42), entry["size"])
	assert.Equal(t, true, entry["mocked"])
	assert.Equal(t, float64(1500), entry["elapsed"])
	assert.Equal(t, "raw", entry["body"])

	headers, ok := entry["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", headers["Accept"])
	assert.Equal(t, DefaultMaskValue, headers["Authorization"])
	assert.False(t, strings.Contains(buf.String(), "dXNlcjpwYXNz"))
}
