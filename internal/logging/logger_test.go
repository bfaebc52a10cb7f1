package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_DebugLevel(t *testing.T) {
	logger := New(Options{Debug: true})
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger = New(Options{})
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jargonrag.log")

	logger := New(Options{FilePath: path})
	logger.Info("ingested note", zap.String("title", "Kerberoasting"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"ingested note"`)
	assert.Contains(t, string(data), `"title":"Kerberoasting"`)
}
