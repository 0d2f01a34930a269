package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInit_LevelOverride(t *testing.T) {
	t.Cleanup(Nop)

	require.NoError(t, Init("production", ""))
	assert.True(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Get().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init("development", "warn"))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Get().Core().Enabled(zapcore.WarnLevel))
}

func TestInit_InvalidLevel(t *testing.T) {
	t.Cleanup(Nop)

	assert.Error(t, Init("development", "loud"))
}

func TestGet_BeforeInit(t *testing.T) {
	Logger = nil
	t.Cleanup(Nop)

	require.NotNil(t, Get())
	require.NotNil(t, Named("engine"))
}
