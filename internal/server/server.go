package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/timzaak/notir/internal/config"
	"github.com/timzaak/notir/internal/hub"
	"github.com/timzaak/notir/internal/limits"
	"github.com/timzaak/notir/internal/monitoring"
)

// Server owns the HTTP listener, the hub, and the background monitors.
// One Server per process; tests run several side by side on ephemeral
// ports.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	hub      *hub.Hub
	listener net.Listener
	httpSrv  *http.Server

	monitor     *monitoring.SystemMonitor
	rateLimiter *limits.ConnRateLimiter

	wg           sync.WaitGroup
	shuttingDown int32
	startTime    time.Time
}

// New wires a Server from validated configuration. Nothing is bound or
// started until Start.
func New(cfg *config.Config) *Server {
	logger := monitoring.NewLogger(monitoring.LoggerConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	s := &Server{
		cfg:    cfg,
		logger: logger,
		hub: hub.New(hub.Config{
			HeartbeatInterval: cfg.HeartbeatInterval,
			ReplyTimeout:      cfg.ReplyTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		}, logger),
		monitor:   monitoring.NewSystemMonitor(logger),
		startTime: time.Now(),
	}

	if cfg.RateLimitEnabled {
		s.rateLimiter = limits.NewConnRateLimiter(limits.RateLimiterConfig{
			IPBurst:     cfg.RateLimitIPBurst,
			IPRate:      cfg.RateLimitIPRate,
			GlobalBurst: cfg.RateLimitGlobalBurst,
			GlobalRate:  cfg.RateLimitGlobalRate,
			Logger:      logger,
		})
		logger.Info().Msg("Connection rate limiting enabled")
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("max_connections", cfg.MaxConnections).
		Dur("heartbeat_interval", cfg.HeartbeatInterval).
		Dur("reply_timeout", cfg.ReplyTimeout).
		Msg("Server initialized")

	return s
}

// Hub exposes the delivery core, mainly for tests.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Addr returns the bound listen address. Valid only after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.logger.Info().
		Str("address", listener.Addr().String()).
		Msg("Notir server listening")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /single/sub", s.withAdmission(s.hub.HandleSingleSubscribe))
	mux.HandleFunc("POST /single/pub", s.hub.HandleSinglePublish)
	mux.HandleFunc("GET /single/connections", s.hub.HandleConnections)
	mux.HandleFunc("GET /broad/sub", s.withAdmission(s.hub.HandleBroadcastSubscribe))
	mux.HandleFunc("POST /broad/pub", s.hub.HandleBroadcastPublish)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/metrics", monitoring.HandleMetrics)
	mux.HandleFunc("/", s.handleStatic)

	s.httpSrv = &http.Server{
		Handler: mux,
		// No read/write timeouts: subscriber sockets are hijacked and
		// ping-pong publishes legitimately block for the reply window.
		MaxHeaderBytes: 1 << 20,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			if atomic.LoadInt32(&s.shuttingDown) == 0 {
				s.logger.Error().Err(err).Msg("Server accept loop error")
			}
		}
	}()

	s.monitor.Start(s.cfg.MonitorInterval)

	return nil
}

// withAdmission gates new subscriber connections: shutdown flag, then
// connection rate limit, then the global connection cap.
func (s *Server) withAdmission(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&s.shuttingDown) == 1 {
			monitoring.SubscribeRejects.WithLabelValues("shutting_down").Inc()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		if s.rateLimiter != nil && !s.rateLimiter.Allow(clientIP(r)) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		if s.cfg.MaxConnections > 0 && s.hub.ActiveConnections() >= int64(s.cfg.MaxConnections) {
			monitoring.SubscribeRejects.WithLabelValues("server_full").Inc()
			s.logger.Warn().
				Int("max_connections", s.cfg.MaxConnections).
				Msg("Connection rejected: server at capacity")
			http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}

// clientIP extracts the client IP. X-Forwarded-For wins when a load
// balancer or proxy sits in front; otherwise the port is stripped from
// RemoteAddr.
func clientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// First IP in the chain is the client.
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type healthResponse struct {
	Status               string  `json:"status"`
	UptimeSeconds        int64   `json:"uptime_seconds"`
	Connections          int64   `json:"connections"`
	SingleIdentifiers    int     `json:"single_identifiers"`
	BroadcastIdentifiers int     `json:"broadcast_identifiers"`
	Goroutines           int     `json:"goroutines"`
	HeapBytes            uint64  `json:"heap_bytes"`
	RSSBytes             uint64  `json:"rss_bytes"`
	CPUPercent           float64 `json:"cpu_percent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	singleIDs, _ := s.hub.SingleTotals()
	broadIDs, _ := s.hub.BroadcastTotals()
	snap := s.monitor.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:               "ok",
		UptimeSeconds:        int64(time.Since(s.startTime).Seconds()),
		Connections:          s.hub.ActiveConnections(),
		SingleIdentifiers:    singleIDs,
		BroadcastIdentifiers: broadIDs,
		Goroutines:           snap.Goroutines,
		HeapBytes:            snap.HeapBytes,
		RSSBytes:             snap.RSSBytes,
		CPUPercent:           snap.CPUPercent,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, Version())
}

// Shutdown drains subscribers within the grace period, then force
// closes whatever is left. Safe to call once.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Initiating graceful shutdown")

	atomic.StoreInt32(&s.shuttingDown, 1)

	if s.listener != nil {
		s.logger.Info().Msg("Closing listener (no new connections accepted)")
		s.listener.Close()
	}

	s.logger.Info().
		Int64("active_connections", s.hub.ActiveConnections()).
		Dur("grace_period", s.cfg.ShutdownGrace).
		Msg("Draining active connections")

	drainTimer := time.NewTimer(s.cfg.ShutdownGrace)
	checkTicker := time.NewTicker(250 * time.Millisecond)
	defer drainTimer.Stop()
	defer checkTicker.Stop()

	for {
		select {
		case <-drainTimer.C:
			remaining := s.hub.ActiveConnections()
			if remaining > 0 {
				s.logger.Warn().
					Int64("remaining_connections", remaining).
					Msg("Grace period expired, force closing remaining connections")
			}
			goto forceClose

		case <-checkTicker.C:
			if s.hub.ActiveConnections() == 0 {
				s.logger.Info().Msg("All connections drained gracefully")
				goto cleanup
			}
		}
	}

forceClose:
	// Closing the queues lets each writer flush its backlog, send a
	// close frame and drop the socket; the readers then observe EOF and
	// deregister themselves.
	s.hub.CloseAll()
	for i := 0; i < 20 && s.hub.ActiveConnections() > 0; i++ {
		time.Sleep(50 * time.Millisecond)
	}

cleanup:
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.monitor.Stop()

	s.logger.Info().Msg("Waiting for all goroutines to finish")
	s.wg.Wait()

	s.logger.Info().Msg("Graceful shutdown completed")
	return nil
}
