package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogError(t *testing.T) {
	t.Run("nil error logs nothing", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		LogError(zap.New(core), nil, "should not appear")
		assert.Zero(t, logs.Len())
	})

	t.Run("app error carries its code", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		err := NewAppError(ErrResearch, "pass failed", nil)

		LogError(zap.New(core), err, "stage failed", zap.String("stage", "researcher"))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "stage failed", entry.Message)
		fields := entry.ContextMap()
		assert.Equal(t, ErrResearch, fields["error_code"])
		assert.Equal(t, "researcher", fields["stage"])
		assert.Contains(t, fields, "error")
	})

	t.Run("plain error has no code field", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		LogError(zap.New(core), New("boom"), "plain failure")

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.NotContains(t, fields, "error_code")
	})
}
