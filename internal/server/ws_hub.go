package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"chaintodo/internal/engine"
	"chaintodo/internal/log"
)

const writeTimeout = 500 * time.Millisecond

// Event is a message sent to websocket clients.
type Event struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq"`
	Payload any    `json:"payload"`
}

// WSHub fans engine snapshots out to websocket clients.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	seq     atomic.Uint64
	logger  log.Logger

	// sendMu orders snapshot sends. last is sent to clients on connect so
	// they don't wait for the next change.
	sendMu sync.Mutex
	last   *engine.Snapshot
}

func NewWSHub(logger log.Logger) *WSHub {
	if logger == nil {
		logger = log.Noop
	}
	return &WSHub{clients: map[*websocket.Conn]struct{}{}, logger: logger}
}

func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debugf("Websocket accept failed: %s", err)
		return
	}
	h.join(conn)
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// PublishSnapshot sends snap to every connected client. It matches the
// engine observer signature and never blocks longer than the write timeout
// per client.
func (h *WSHub) PublishSnapshot(snap engine.Snapshot) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	h.last = &snap

	msg, err := h.encode(snap)
	if err != nil {
		h.logger.Errorf("Could not encode snapshot: %s", err)
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.write(c, msg)
	}
}

// join registers conn and sends it the last snapshot. Holding sendMu keeps
// a concurrent publish from reaching conn before the older snapshot does.
func (h *WSHub) join(conn *websocket.Conn) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	if h.last == nil {
		return
	}
	if msg, err := h.encode(*h.last); err == nil {
		h.write(conn, msg)
	}
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) encode(snap engine.Snapshot) ([]byte, error) {
	return json.Marshal(Event{Type: "snapshot", Seq: h.seq.Add(1), Payload: snap})
}

func (h *WSHub) write(c *websocket.Conn, msg []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, msg); err != nil {
		h.logger.Debugf("Websocket write failed: %s", err)
	}
}
