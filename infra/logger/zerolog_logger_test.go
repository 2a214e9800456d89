package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerConsole(t *testing.T) {
	require.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("dispatcher", &buf).(*ZerologLogger).With("robot", "3")
	l.Warnf("low battery")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatcher", line["component"])
	assert.Equal(t, "3", line["robot"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "low battery", line["message"])
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	require.NoError(t, SetLevel("warn"))
	var buf bytes.Buffer
	l := NewWithWriter("world", &buf)
	l.Infof("hidden")
	assert.Zero(t, buf.Len())

	require.NoError(t, SetLevel(""))
	assert.Error(t, SetLevel("loud"))
}
