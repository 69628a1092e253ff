package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetLevel(t *testing.T) {
	l := GetLogger()
	prev := l.level.Level()
	t.Cleanup(func() { l.level.SetLevel(prev) })

	require.NoError(t, SetLevel("WARN"))
	assert.False(t, l.level.Enabled(zap.InfoLevel))
	assert.True(t, l.level.Enabled(zap.WarnLevel))

	child := l.With("component", "test")
	require.NoError(t, SetLevel("debug"))
	assert.True(t, child.level.Enabled(zap.DebugLevel))

	assert.Error(t, SetLevel("loud"))
}
