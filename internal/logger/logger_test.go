package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"qcping/internal/config"
)

func TestNew_Level(t *testing.T) {
	t.Parallel()

	log, err := New(config.LogConfig{Level: "DEBUG", Encoding: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	t.Parallel()

	log, err := New(config.LogConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_RejectsUnknownEncoding(t *testing.T) {
	t.Parallel()

	_, err := New(config.LogConfig{Level: "info", Encoding: "xml"})
	assert.Error(t, err)
}

func TestNew_WritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "qcping.log")
	log, err := New(config.LogConfig{Level: "info", Encoding: "json", Output: path})
	require.NoError(t, err)
	log.Info("cycle done", zap.Int("streams", 3))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"cycle done"`)
	assert.Contains(t, string(data), `"streams":3`)
}

func TestSampling(t *testing.T) {
	t.Parallel()

	assert.Nil(t, sampling(config.LogConfig{}))

	sc := sampling(config.LogConfig{Sampling: true})
	require.NotNil(t, sc)
	assert.Equal(t, config.DefaultSampleInitial, sc.Initial)
	assert.Equal(t, config.DefaultSampleAfter, sc.Thereafter)

	sc = sampling(config.LogConfig{Sampling: true, SampleInitial: 5, SampleThereafter: 50})
	assert.Equal(t, 5, sc.Initial)
	assert.Equal(t, 50, sc.Thereafter)
}
