package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format  string
		level   string
		wantErr bool
	}{
		{"text", "info", false},
		{"json", "debug", false},
		{"json", "none", false},
		{"text", "verbose", true},
		{"yaml", "info", true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"_"+tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.format, tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
}

func TestMustNewLoggerPanics(t *testing.T) {
	require.Panics(t, func() { MustNewLogger("text", "loud") })
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var l Logger = &ZapLogger{zap.New(core)}

	l.With(zap.String("worker_id", "w1")).Info("spawned", zap.Int("rows", 3))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "spawned", entries[0].Message)
	require.Equal(t, "w1", entries[0].ContextMap()["worker_id"])
	require.Equal(t, int64(3), entries[0].ContextMap()["rows"])
}
