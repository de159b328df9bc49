package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "98******10", MaskPhone("9876543210"))
	assert.Equal(t, "****", MaskPhone("1234"))
	assert.Equal(t, "****", MaskPhone(""))
}

func TestNewLogger_levelAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{ServiceName: "playmate", Environment: "test", Level: "warn", Output: &buf})

	logger.Info("dropped")
	assert.Zero(t, buf.Len(), "info must be filtered at warn level")

	logger.Warn("kept", Phone("9876543210"))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "playmate", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, "98******10", line["phone"])
}
