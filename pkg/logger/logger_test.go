package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, "info", "json")
		l.Info("loaded", "pubs", 3)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "loaded", entry["msg"])
		assert.EqualValues(t, 3, entry["pubs"])
	})

	t.Run("level filters debug", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, "warn", "text")
		l.Info("hidden")
		l.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}
