package hub

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/timzaak/notir/internal/monitoring"
)

// legacyHeartbeat is the single-byte text frame some older clients send
// instead of a pong. Treated like a pong and discarded.
const legacyHeartbeat = "!"

// HandleSingleSubscribe upgrades GET /single/sub?id= into a unicast
// subscription. The handler goroutine becomes the connection's reader;
// writer and heartbeat are spawned before the registry insert so the
// enqueue handle is live the moment a publisher can see it.
func (h *Hub) HandleSingleSubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriberID(w, r)
	if !ok {
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Error().Err(err).Str("identifier", id).Msg("WebSocket upgrade failed")
		monitoring.SubscribeRejects.WithLabelValues("upgrade_failed").Inc()
		return
	}

	queue := NewOutboundQueue()
	sc := &SubscriberConn{ID: h.nextConnID(), Queue: queue}
	c := newWSConn(sock, queue)

	logger := h.logger.With().
		Str("mode", "single").
		Str("identifier", id).
		Uint64("conn_id", sc.ID).
		Logger()
	logger.Info().Str("remote_addr", r.RemoteAddr).Msg("New subscriber")

	go h.writePump(c, logger)
	go h.heartbeatPump(queue, logger)

	h.single.Add(id, sc)
	atomic.AddInt64(&h.activeConns, 1)
	monitoring.SubscribersTotal.WithLabelValues("single").Inc()
	monitoring.SubscribersActive.WithLabelValues("single").Inc()

	h.readSingle(c, id, logger)

	h.single.Remove(id, sc.ID)
	queue.Close()
	atomic.AddInt64(&h.activeConns, -1)
	monitoring.SubscribersActive.WithLabelValues("single").Dec()
	logger.Info().Msg("Subscriber disconnected")
}

// HandleBroadcastSubscribe upgrades GET /broad/sub?id= into a fan-out
// subscription. Same lifecycle as single mode, minus the reply machinery.
func (h *Hub) HandleBroadcastSubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriberID(w, r)
	if !ok {
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("identifier", id).Msg("WebSocket upgrade failed")
		monitoring.SubscribeRejects.WithLabelValues("upgrade_failed").Inc()
		return
	}

	queue := NewOutboundQueue()
	sc := &SubscriberConn{ID: h.nextConnID(), Queue: queue}
	c := newWSConn(sock, queue)

	logger := h.logger.With().
		Str("mode", "broadcast").
		Str("identifier", id).
		Uint64("conn_id", sc.ID).
		Logger()
	logger.Info().Str("remote_addr", r.RemoteAddr).Msg("New subscriber")

	go h.writePump(c, logger)
	go h.heartbeatPump(queue, logger)

	h.broadcast.Add(id, sc)
	atomic.AddInt64(&h.activeConns, 1)
	monitoring.SubscribersTotal.WithLabelValues("broadcast").Inc()
	monitoring.SubscribersActive.WithLabelValues("broadcast").Inc()

	h.readBroadcast(c, logger)

	h.broadcast.Remove(id, sc.ID)
	queue.Close()
	atomic.AddInt64(&h.activeConns, -1)
	monitoring.SubscribersActive.WithLabelValues("broadcast").Dec()
	logger.Info().Msg("Subscriber disconnected")
}

// subscriberID validates the id query parameter for subscribe requests.
func subscriberID(w http.ResponseWriter, r *http.Request) (string, bool) {
	query := r.URL.Query()
	if !query.Has("id") {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return "", false
	}
	id := query.Get("id")
	if id == "" {
		http.Error(w, "'id' query parameter cannot be empty", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// readSingle consumes inbound frames until close or error. Data frames
// service the identifier's reply FIFO in push order; frames with no
// waiting slot are dropped. The dispatch never holds a registry lock
// across a socket read.
func (h *Hub) readSingle(c *wsConn, id string, logger zerolog.Logger) {
	c.sock.SetPongHandler(func(string) error {
		logger.Debug().Msg("Pong received")
		return nil
	})

	for {
		frameType, payload, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Read failed")
			}
			return
		}
		if frameType != websocket.TextMessage && frameType != websocket.BinaryMessage {
			continue
		}
		if frameType == websocket.TextMessage && string(payload) == legacyHeartbeat {
			logger.Debug().Msg("Legacy heartbeat received")
			continue
		}

		slot, ok := h.single.PopSlot(id)
		if !ok {
			logger.Debug().Int("bytes", len(payload)).Msg("No pending reply slot, frame dropped")
			continue
		}
		slot.Deliver(payload)
	}
}

// readBroadcast consumes and discards inbound frames; it exists to detect
// disconnect and to let the WebSocket layer answer pings.
func (h *Hub) readBroadcast(c *wsConn, logger zerolog.Logger) {
	c.sock.SetPongHandler(func(string) error {
		logger.Debug().Msg("Pong received")
		return nil
	})

	for {
		if _, _, err := c.sock.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Read failed")
			}
			return
		}
	}
}
