package hub

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/timzaak/notir/internal/monitoring"
)

// HandleSinglePublish serves POST /single/pub?id=&mode=. Mode defaults to
// shot; ping_pong additionally waits for the subscriber's reply frame.
func (h *Hub) HandleSinglePublish(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter for /pub", http.StatusBadRequest)
		return
	}
	mode := ParseMode(r.URL.Query().Get("mode"))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error().Err(err).Str("identifier", id).Msg("Failed to read publish body")
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}
	contentType := r.Header.Get("Content-Type")

	if mode == ModePingPong {
		h.publishPingPong(w, id, contentType, body)
		return
	}
	h.publishShot(w, id, contentType, body)
}

// publishShot delivers to one live subscriber of the identifier. An
// unknown identifier outranks a malformed body, so the lookup happens
// before encoding.
func (h *Hub) publishShot(w http.ResponseWriter, id, contentType string, body []byte) {
	conns := h.single.Snapshot(id)
	if len(conns) == 0 {
		monitoring.PublishTotal.WithLabelValues("shot", "not_found").Inc()
		http.Error(w, "subscriber id not found", http.StatusNotFound)
		return
	}

	msg, err := EncodeBody(contentType, body)
	if err != nil {
		monitoring.PublishTotal.WithLabelValues("shot", "invalid_utf8").Inc()
		http.Error(w, "Invalid UTF-8 in body", http.StatusBadRequest)
		return
	}

	if !h.sendToOne(id, conns, msg) {
		monitoring.PublishTotal.WithLabelValues("shot", "send_failed").Inc()
		http.Error(w, "subscriber disconnected during send", http.StatusNotFound)
		return
	}

	monitoring.PublishTotal.WithLabelValues("shot", "ok").Inc()
	w.WriteHeader(http.StatusOK)
}

// publishPingPong delivers like shot but first pushes a reply slot, so a
// reply arriving even before this goroutine reaches the wait still lands
// in the slot's buffer. The wait is bounded by the reply timeout.
func (h *Hub) publishPingPong(w http.ResponseWriter, id, contentType string, body []byte) {
	conns := h.single.Snapshot(id)
	if len(conns) == 0 {
		monitoring.PublishTotal.WithLabelValues("ping_pong", "not_found").Inc()
		http.Error(w, "subscriber id not found", http.StatusNotFound)
		return
	}

	msg, err := EncodeBody(contentType, body)
	if err != nil {
		monitoring.PublishTotal.WithLabelValues("ping_pong", "invalid_utf8").Inc()
		http.Error(w, "Invalid UTF-8 in body", http.StatusBadRequest)
		return
	}

	slot := NewReplySlot()
	if !h.single.PushSlot(id, slot) {
		// The last subscriber left between snapshot and push.
		monitoring.PublishTotal.WithLabelValues("ping_pong", "not_found").Inc()
		http.Error(w, "subscriber id not found", http.StatusNotFound)
		return
	}
	monitoring.PendingReplies.Inc()
	defer monitoring.PendingReplies.Dec()

	if !h.sendToOne(id, conns, msg) {
		h.single.RemoveSlot(id, slot.ID)
		monitoring.PublishTotal.WithLabelValues("ping_pong", "send_failed").Inc()
		http.Error(w, "subscriber disconnected during send", http.StatusNotFound)
		return
	}

	start := time.Now()
	timer := time.NewTimer(h.cfg.ReplyTimeout)
	defer timer.Stop()

	select {
	case reply, ok := <-slot.Wait():
		if !ok {
			// Disconnect cleanup dropped the identifier's FIFO.
			monitoring.ReplyWaitSeconds.WithLabelValues("gone").Observe(time.Since(start).Seconds())
			monitoring.PublishTotal.WithLabelValues("ping_pong", "gone").Inc()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		monitoring.ReplyWaitSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		monitoring.PublishTotal.WithLabelValues("ping_pong", "ok").Inc()
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(reply)

	case <-timer.C:
		// The slot may already be gone if a late frame consumed it.
		h.single.RemoveSlot(id, slot.ID)
		monitoring.ReplyWaitSeconds.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
		monitoring.PublishTotal.WithLabelValues("ping_pong", "timeout").Inc()
		http.Error(w, "Request timeout after 5 seconds", http.StatusRequestTimeout)
	}
}

// sendToOne enqueues msg to the first live connection in conns, lazily
// pruning every dead one it trips over. Reports whether any enqueue
// succeeded.
func (h *Hub) sendToOne(id string, conns []*SubscriberConn, msg Message) bool {
	for _, sc := range conns {
		if err := sc.Queue.Push(msg); err == nil {
			return true
		}
		monitoring.SendFailures.Inc()
		h.logger.Warn().
			Str("identifier", id).
			Uint64("conn_id", sc.ID).
			Msg("Send failed, pruning dead connection")
		h.single.Remove(id, sc.ID)
	}
	return false
}

// HandleBroadcastPublish serves POST /broad/pub?id=. Fan-out to every
// subscriber of the identifier; 200 regardless of recipient count.
// Encoding is checked before the lookup, so a malformed text body is 400
// even when nobody is subscribed.
func (h *Hub) HandleBroadcastPublish(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter for /broad/pub", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error().Err(err).Str("identifier", id).Msg("Failed to read publish body")
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	msg, err := EncodeBody(r.Header.Get("Content-Type"), body)
	if err != nil {
		monitoring.PublishTotal.WithLabelValues("broadcast", "invalid_utf8").Inc()
		http.Error(w, "Invalid UTF-8 in body", http.StatusBadRequest)
		return
	}

	var failed []uint64
	for _, sc := range h.broadcast.Snapshot(id) {
		if err := sc.Queue.Push(msg); err != nil {
			failed = append(failed, sc.ID)
			monitoring.SendFailures.Inc()
			h.logger.Warn().
				Str("identifier", id).
				Uint64("conn_id", sc.ID).
				Msg("Broadcast send failed, connection will be removed")
		}
	}
	h.broadcast.PruneMany(id, failed)

	monitoring.PublishTotal.WithLabelValues("broadcast", "ok").Inc()
	w.WriteHeader(http.StatusOK)
}

type connectionCount struct {
	Count int `json:"count"`
}

// HandleConnections serves GET /single/connections?id=, reporting how
// many live subscribers the single registry holds for the identifier.
func (h *Hub) HandleConnections(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(connectionCount{Count: h.single.Count(id)})
}
