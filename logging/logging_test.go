package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/config"
	"go.uber.org/zap/zapcore"
)

func TestNew_DebugEnablesDebugLevel(t *testing.T) {
	l, err := New(config.LogConfig{Level: "info"}, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_ProductionRespectsLevel(t *testing.T) {
	l, err := New(config.LogConfig{Level: "warn"}, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trailmate.log")
	l, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, false)
	require.NoError(t, err)

	l.Info("quest completed")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "quest completed")
}
