package limits

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/timzaak/notir/internal/monitoring"
)

// ConnRateLimiter throttles new subscriber connections.
//
// Two-level rate limiting:
//   - Per-IP: prevents a single client from flooding connections
//   - Global: prevents system-wide overload from many clients at once
//
// Uses token bucket algorithm (golang.org/x/time/rate). Per-IP buckets
// are created lazily and evicted after a TTL without activity.
type ConnRateLimiter struct {
	ipLimiters map[string]*ipLimiterEntry
	ipMu       sync.RWMutex
	ipBurst    int
	ipRate     float64
	ipTTL      time.Duration

	globalLimiter *rate.Limiter
	globalBurst   int
	globalRate    float64

	logger zerolog.Logger

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// ipLimiterEntry holds a rate limiter and last access time for an IP
type ipLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiterConfig holds configuration for connection rate limiting.
// Zero values fall back to the defaults noted per field.
type RateLimiterConfig struct {
	IPBurst int           // Max burst connections per IP (default: 10)
	IPRate  float64       // Sustained connections/sec per IP (default: 1.0)
	IPTTL   time.Duration // Evict idle IP buckets after this (default: 5 minutes)

	GlobalBurst int     // Max burst connections system-wide (default: 300)
	GlobalRate  float64 // Sustained connections/sec system-wide (default: 50.0)

	Logger zerolog.Logger
}

// NewConnRateLimiter creates a connection rate limiter and starts its
// background cleanup goroutine. Call Stop during shutdown.
func NewConnRateLimiter(config RateLimiterConfig) *ConnRateLimiter {
	if config.IPBurst == 0 {
		config.IPBurst = 10
	}
	if config.IPRate == 0 {
		config.IPRate = 1.0
	}
	if config.IPTTL == 0 {
		config.IPTTL = 5 * time.Minute
	}
	if config.GlobalBurst == 0 {
		config.GlobalBurst = 300
	}
	if config.GlobalRate == 0 {
		config.GlobalRate = 50.0
	}

	l := &ConnRateLimiter{
		ipLimiters:    make(map[string]*ipLimiterEntry),
		ipBurst:       config.IPBurst,
		ipRate:        config.IPRate,
		ipTTL:         config.IPTTL,
		globalLimiter: rate.NewLimiter(rate.Limit(config.GlobalRate), config.GlobalBurst),
		globalBurst:   config.GlobalBurst,
		globalRate:    config.GlobalRate,
		logger:        config.Logger.With().Str("component", "rate_limiter").Logger(),
		stopCleanup:   make(chan struct{}),
	}

	l.cleanupTicker = time.NewTicker(1 * time.Minute)
	go l.cleanupLoop()

	l.logger.Info().
		Int("ip_burst", config.IPBurst).
		Float64("ip_rate", config.IPRate).
		Dur("ip_ttl", config.IPTTL).
		Int("global_burst", config.GlobalBurst).
		Float64("global_rate", config.GlobalRate).
		Msg("Connection rate limiter initialized")

	return l
}

// Allow reports whether a connection attempt from ip may proceed.
// The global bucket is checked first (no map lookup), then the per-IP one.
// A false return should surface as 429 Too Many Requests.
func (l *ConnRateLimiter) Allow(ip string) bool {
	if !l.globalLimiter.Allow() {
		l.logger.Debug().
			Str("ip", ip).
			Float64("global_rate", l.globalRate).
			Int("global_burst", l.globalBurst).
			Msg("Connection rejected: global rate limit exceeded")
		monitoring.SubscribeRejects.WithLabelValues("rate_limited_global").Inc()
		return false
	}

	if !l.getIPLimiter(ip).Allow() {
		l.logger.Debug().
			Str("ip", ip).
			Float64("ip_rate", l.ipRate).
			Int("ip_burst", l.ipBurst).
			Msg("Connection rejected: per-IP rate limit exceeded")
		monitoring.SubscribeRejects.WithLabelValues("rate_limited_ip").Inc()
		return false
	}

	return true
}

// getIPLimiter retrieves or creates the bucket for ip.
func (l *ConnRateLimiter) getIPLimiter(ip string) *rate.Limiter {
	l.ipMu.RLock()
	entry, exists := l.ipLimiters[ip]
	l.ipMu.RUnlock()

	if exists {
		l.ipMu.Lock()
		entry.lastAccess = time.Now()
		l.ipMu.Unlock()
		return entry.limiter
	}

	l.ipMu.Lock()
	defer l.ipMu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists = l.ipLimiters[ip]; exists {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(l.ipRate), l.ipBurst)
	l.ipLimiters[ip] = &ipLimiterEntry{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	l.logger.Debug().
		Str("ip", ip).
		Int("total_tracked_ips", len(l.ipLimiters)).
		Msg("Created rate limiter for new IP")

	return limiter
}

func (l *ConnRateLimiter) cleanupLoop() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanup()
		case <-l.stopCleanup:
			l.cleanupTicker.Stop()
			return
		}
	}
}

// cleanup evicts IP buckets idle longer than the TTL.
func (l *ConnRateLimiter) cleanup() {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()

	now := time.Now()
	removed := 0
	for ip, entry := range l.ipLimiters {
		if now.Sub(entry.lastAccess) > l.ipTTL {
			delete(l.ipLimiters, ip)
			removed++
		}
	}

	if removed > 0 {
		l.logger.Debug().
			Int("removed", removed).
			Int("remaining", len(l.ipLimiters)).
			Msg("Cleaned up stale IP rate limiters")
	}
}

// TrackedIPs returns how many per-IP buckets are currently held.
func (l *ConnRateLimiter) TrackedIPs() int {
	l.ipMu.RLock()
	defer l.ipMu.RUnlock()
	return len(l.ipLimiters)
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (l *ConnRateLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCleanup)
	})
}
