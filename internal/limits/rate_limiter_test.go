package limits

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerIPLimit(t *testing.T) {
	l := NewConnRateLimiter(RateLimiterConfig{
		IPBurst:     2,
		IPRate:      0.01,
		GlobalBurst: 100,
		GlobalRate:  100,
		Logger:      zerolog.Nop(),
	})
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// Each address gets its own bucket.
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestGlobalLimit(t *testing.T) {
	l := NewConnRateLimiter(RateLimiterConfig{
		IPBurst:     100,
		IPRate:      100,
		GlobalBurst: 1,
		GlobalRate:  0.01,
		Logger:      zerolog.Nop(),
	})
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	// The global bucket is drained regardless of source address.
	assert.False(t, l.Allow("10.0.0.2"))
}

func TestCleanupEvictsIdleBuckets(t *testing.T) {
	l := NewConnRateLimiter(RateLimiterConfig{
		IPTTL:  10 * time.Millisecond,
		Logger: zerolog.Nop(),
	})
	defer l.Stop()

	l.Allow("10.0.0.1")
	require.Equal(t, 1, l.TrackedIPs())

	time.Sleep(20 * time.Millisecond)
	l.cleanup()
	assert.Equal(t, 0, l.TrackedIPs())
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewConnRateLimiter(RateLimiterConfig{Logger: zerolog.Nop()})
	l.Stop()
	l.Stop()
}
