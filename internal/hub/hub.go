// Package hub routes published payloads to WebSocket subscribers keyed by
// caller-chosen identifiers, in single (unicast, optionally with a
// synchronous reply) and broadcast (fan-out) modes.
//
// Ping-pong replies carry no correlation id on the wire: pending requests
// for an identifier form a FIFO, and each data frame from that subscriber
// answers the oldest outstanding request. Subscribers must reply to
// ping-pong messages in the order received, or answers are matched to the
// wrong request.
package hub

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Default timings. Heartbeat and reply wait are protocol constants; the
// config layer exposes them as env knobs so tests can shrink them.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultReplyTimeout      = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
)

// Config carries the hub's timing knobs. Zero values fall back to the
// defaults above.
type Config struct {
	HeartbeatInterval time.Duration
	ReplyTimeout      time.Duration
	WriteTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = DefaultReplyTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Hub owns the two registries and implements every subscribe and publish
// operation. Routing, admission, and static assets live in the server
// package; requests reach the hub only after admission.
type Hub struct {
	cfg    Config
	logger zerolog.Logger

	single    *SingleRegistry
	broadcast *BroadcastRegistry

	upgrader websocket.Upgrader

	connSeq     uint64 // source of ConnectionIds for both registries
	activeConns int64  // live subscribers across both modes
}

func New(cfg Config, logger zerolog.Logger) *Hub {
	return &Hub{
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "hub").Logger(),
		single:    NewSingleRegistry(),
		broadcast: NewBroadcastRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) nextConnID() uint64 {
	return atomic.AddUint64(&h.connSeq, 1)
}

// ActiveConnections reports the number of live subscribers across both
// modes. The shutdown drain polls this until it reaches zero.
func (h *Hub) ActiveConnections() int64 {
	return atomic.LoadInt64(&h.activeConns)
}

// SingleTotals returns identifier and connection counts for the single
// registry.
func (h *Hub) SingleTotals() (identifiers, conns int) {
	return h.single.Totals()
}

// BroadcastTotals returns identifier and connection counts for the
// broadcast registry.
func (h *Hub) BroadcastTotals() (identifiers, conns int) {
	return h.broadcast.Totals()
}

// CloseAll shuts down every subscriber in both registries. Each queue gets
// a normal-closure close request appended and is then closed, so writers
// flush their backlog, send the close frame, and close their sockets;
// readers exit and deregister through the normal disconnect path.
func (h *Hub) CloseAll() {
	closing := CloseMessage(websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	h.single.CloseAllQueues(closing)
	h.broadcast.CloseAllQueues(closing)
}
