package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/config"
)

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(config.LogConfig{Level: "warn", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept", zap.String("order_code", "ORD-1"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"order_code":"ORD-1"`)
}

func TestNew_invalid(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Encoding: "xml"})
	assert.Error(t, err)
}
