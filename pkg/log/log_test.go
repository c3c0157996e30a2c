package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupAndTag(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		_ = Setup("info", FormatText)
	})

	require.NoError(t, Setup("debug", FormatJSON))
	assert.Equal(t, "debug", Level())

	NewLogger("executor").Debug("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "executor", line["tag"])
	assert.Equal(t, "hello", line["msg"])
}

func TestSetupRejectsBadInput(t *testing.T) {
	assert.Error(t, Setup("loud", FormatText))
	assert.ErrorIs(t, Setup("info", "xml"), ErrUnknownFormat)
}
