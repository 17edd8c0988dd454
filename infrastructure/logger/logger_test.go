package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFileOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:      "info",
		Outputs:    []string{"file"},
		OutputFile: filepath.Join(dir, "pricer.log"),
		ErrorFile:  filepath.Join(dir, "errors.log"),
		Format:     "json",
	}
	l, err := New(cfg)
	require.NoError(t, err)

	l.WithFields(map[string]interface{}{"instrument": "3x5"}).Info("order_submitted")
	l.LogError(errors.New("boom"), map[string]interface{}{"line": 3})
	_ = l.Close()

	all, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(all), `"instrument":"3x5"`)
	assert.Contains(t, string(all), `"error":"boom"`)

	errs, err := os.ReadFile(cfg.ErrorFile)
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "order_submitted")
	assert.Contains(t, string(errs), "error_event")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("ignored")
	assert.NoError(t, l.Close())
}

func TestSetLevel(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Level: "info", Outputs: []string{"file"}, OutputFile: filepath.Join(dir, "pricer.log"), Format: "json"}
	l, err := New(cfg)
	require.NoError(t, err)

	l.Debug("hidden")
	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, "debug", l.Level().String())
	l.WithFields(map[string]interface{}{"k": 1}).Debug("shown")
	assert.Error(t, l.SetLevel("chatty"))
	_ = l.Close()

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}
