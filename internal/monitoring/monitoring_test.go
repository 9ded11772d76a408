package monitoring

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		NewLogger(LoggerConfig{Level: tt.level, Format: "json"})
		assert.Equal(t, tt.want, zerolog.GlobalLevel(), "level %q", tt.level)
	}

	// Leave the process at a sane level for the rest of the suite.
	NewLogger(LoggerConfig{Level: "error", Format: "json"})
}

func TestSystemMonitorLifecycle(t *testing.T) {
	m := NewSystemMonitor(zerolog.Nop())
	assert.True(t, m.Snapshot().Timestamp.IsZero())

	m.Start(50 * time.Millisecond)

	// The first sample includes a one-second CPU measurement window.
	require.Eventually(t, func() bool {
		snap := m.Snapshot()
		return !snap.Timestamp.IsZero() && snap.Goroutines > 0 && snap.HeapBytes > 0
	}, 3*time.Second, 50*time.Millisecond)

	m.Stop()
}
