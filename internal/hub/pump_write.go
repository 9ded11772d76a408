package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/timzaak/notir/internal/monitoring"
)

// writePump drains the outbound queue to the socket. It is the only
// goroutine that writes to or closes the socket. Write errors are consumed
// silently at debug level: the socket's next read surfaces the failure and
// the reader performs deregistration.
func (h *Hub) writePump(c *wsConn, logger zerolog.Logger) {
	defer c.teardown()

	for {
		msg, ok := c.queue.Next()
		if !ok {
			// Queue closed and drained. Tell the peer goodbye; the socket
			// close in teardown unblocks the reader.
			logger.Debug().Msg("Outbound queue closed, sending close frame")
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			c.sock.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}

		c.sock.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		if err := c.sock.WriteMessage(frameType(msg.Kind), msg.Payload); err != nil {
			logger.Debug().Err(err).Str("kind", msg.Kind.String()).Msg("Write failed")
			c.queue.Close()
			return
		}

		switch msg.Kind {
		case KindText, KindBinary:
			monitoring.MessagesDelivered.Inc()
			monitoring.BytesDelivered.Add(float64(len(msg.Payload)))
		case KindPing:
			monitoring.HeartbeatPings.Inc()
			logger.Debug().Msg("Heartbeat ping sent")
		case KindClose:
			// Explicit close request from the hub. The frame is on the wire;
			// anything still queued behind it is abandoned.
			logger.Debug().Msg("Close frame sent, writer exiting")
			return
		}
	}
}

// frameType maps a Message kind to the gorilla wire type.
func frameType(k Kind) int {
	switch k {
	case KindText:
		return websocket.TextMessage
	case KindBinary:
		return websocket.BinaryMessage
	case KindPing:
		return websocket.PingMessage
	case KindPong:
		return websocket.PongMessage
	case KindClose:
		return websocket.CloseMessage
	default:
		return websocket.BinaryMessage
	}
}
