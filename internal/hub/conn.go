package hub

import (
	"sync"

	"github.com/gorilla/websocket"
)

// SubscriberConn is the registry's view of one live WebSocket: the
// connection id plus the enqueue handle. The writer goroutine owns the
// consume side of the queue, the reader goroutine owns the socket's read
// half; neither is reachable through the registry.
type SubscriberConn struct {
	ID    uint64
	Queue *OutboundQueue
}

// wsConn bundles the socket with the close choreography shared by the
// writer, heartbeat, and reader goroutines. Whichever side observes a
// failure first closes the queue and the socket; the others notice and
// exit on their own.
type wsConn struct {
	sock      *websocket.Conn
	queue     *OutboundQueue
	closeOnce sync.Once
}

func newWSConn(sock *websocket.Conn, queue *OutboundQueue) *wsConn {
	return &wsConn{sock: sock, queue: queue}
}

// teardown closes the queue and the underlying socket. Closing the socket
// unblocks a reader parked in ReadMessage; closing the queue unblocks a
// writer parked in Next and fails all future producer pushes.
func (c *wsConn) teardown() {
	c.closeOnce.Do(func() {
		c.queue.Close()
		c.sock.Close()
	})
}
