// Package webtap is a live, read-only fan-out of drained Frames to
// connected browser/debug clients over a WebSocket, grounded on the
// teacher's websocket.go: an Upgrader with a permissive CheckOrigin, a
// wsConn wrapping the connection with a write mutex, and a dedicated
// per-connection writer goroutine fed by a buffered channel so one slow
// client can't block the broadcast to the rest (the same shape the teacher
// uses for its spectrum writer). The host UART link remains the single
// consumer of record for the PacketRing; Hub.Broadcast is fed frames
// already drained by that consumer.
package webtap

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwsl/blesniffercore/internal/corelog"
	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/hostlink"
)

// sendBuffer is how many pending outbound messages a client may have
// queued before Hub considers it too slow and drops it (the teacher's
// spectrum writer buffers 30 frames at 10Hz; our frame rate is much higher
// and bursty, so the buffer favors recent captures over history).
const sendBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client wraps one WebSocket connection with its own writer goroutine,
// exactly mirroring the teacher's wsConn/startSpectrumWriter split between
// the broadcaster (producer) and the per-connection writer (consumer).
type client struct {
	conn    *websocket.Conn
	send    chan []byte
	closeMu sync.Mutex
	closed  bool
}

func (c *client) writeLoop() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			c.closeOnce()
			return
		}
	}
}

func (c *client) closeOnce() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}

// enqueue offers msg to the client's send buffer without blocking; a full
// buffer means the client is too slow and is dropped, matching the
// teacher's "prevent slow clients from blocking distribution" rationale.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub tracks every connected tap client and broadcasts drained Frames to
// all of them. The zero value is not ready to use; construct with NewHub.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *corelog.Logger
}

// NewHub returns an empty Hub. log may be nil to disable local logging of
// connect/disconnect/drop events.
func NewHub(log *corelog.Logger) *Hub {
	return &Hub{clients: make(map[*client]struct{}), log: log}
}

// HandleWebSocket upgrades r to a WebSocket and registers the connection as
// a tap client until it disconnects or is dropped for being too slow.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.Printf("webtap: upgrade failed: %v", err)
		}
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go c.writeLoop()

	// The tap is read-only: any inbound message (including the close
	// handshake and pings) just needs to be drained so the connection
	// doesn't look stalled; ReadMessage returning an error means the peer
	// is gone.
	go func() {
		defer h.unregister(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(c.send)
				return
			}
		}
	}()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.log != nil {
		h.log.Debugf("webtap: client connected, %d total", len(h.clients))
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if h.log != nil {
		h.log.Debugf("webtap: client disconnected, %d total", len(h.clients))
	}
}

// Broadcast wire-encodes f (the same base64-free binary body the host UART
// link would carry, via hostlink.EncodeMessage) and offers it to every
// connected client, dropping any client whose buffer is full.
func (h *Hub) Broadcast(f *frame.Frame) {
	if h.clientCount() == 0 {
		return
	}
	msg := hostlink.EncodeMessage(f)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.enqueue(msg) {
			delete(h.clients, c)
			c.closeOnce()
			if h.log != nil {
				h.log.Printf("webtap: dropped slow client, %d remaining", len(h.clients))
			}
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
