package alerts

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/feedsync/internal/cmd/output"
	"github.com/agentstation/feedsync/pkg/errors"
)

func TestAlert_String(t *testing.T) {
	a := NewError("Refresh failed").WithError(errors.New("timeout"))
	assert.Equal(t, "✗ Refresh failed: timeout", a.String())
	assert.Equal(t, "✓ Loaded", NewSuccess("Loaded").String())
	assert.Equal(t, "warning", LevelWarning.String())
	assert.Equal(t, "unknown(9)", Level(9).String())
}

func TestFormatWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	w := NewFormatWriter(&buf, output.FormatTable, false)

	require.NoError(t, w.WriteAlert(NewWarning("Insufficient credits").WithDetails("Please top up credits")))
	assert.Equal(t, "! Insufficient credits\n   Please top up credits\n", buf.String())
}

func TestFormatWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewFormatWriter(&buf, output.FormatJSON, true)
	require.NoError(t, w.WriteAlert(NewInfo("Credit error dismissed")))
	require.NoError(t, w.WriteAlert(NewError("Stream failed").WithError(errors.New("boom"))))

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "Credit error dismissed", first["message"])
	assert.Equal(t, "boom", second["error"])
}

func TestFormatWriter_YAML(t *testing.T) {
	var buf bytes.Buffer
	w := NewFormatWriter(&buf, output.FormatYAML, true)
	require.NoError(t, w.WriteAlert(NewSuccess("Loaded")))
	assert.Contains(t, buf.String(), "---\n")
	assert.Contains(t, buf.String(), "level: success\n")
	assert.Contains(t, buf.String(), "message: Loaded\n")
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.WriteAlert(NewError("x")))
}
