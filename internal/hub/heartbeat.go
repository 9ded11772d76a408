package hub

import (
	"time"

	"github.com/rs/zerolog"
)

// heartbeatPump enqueues an empty ping every heartbeat interval. The first
// ping goes out one full interval after connect. A closed queue means the
// connection is gone and the pump exits; the heartbeat's write traffic is
// what surfaces silent TCP failures to the writer.
func (h *Hub) heartbeatPump(q *OutboundQueue, logger zerolog.Logger) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := q.Push(PingMessage()); err != nil {
			logger.Debug().Msg("Heartbeat pump stopped, queue closed")
			return
		}
	}
}
