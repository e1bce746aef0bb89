package rpc

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Thorstarter/thorstarter-terra/host"
	"github.com/Thorstarter/thorstarter-terra/log"
	"github.com/Thorstarter/thorstarter-terra/metrics"
	"github.com/gorilla/websocket"
)

// WebSocket configuration constants.
const (
	// WSMaxMessageSize is the largest frame accepted from a client.
	WSMaxMessageSize = 4 << 10
	// WSPingInterval is the interval between ping frames sent to the client.
	WSPingInterval = 30 * time.Second
	// WSPongTimeout is the deadline for a pong response after a ping.
	WSPongTimeout = 60 * time.Second
	// WSWriteTimeout is the deadline for a write operation.
	WSWriteTimeout = 10 * time.Second
	// WSMaxConnections bounds concurrent stream clients.
	WSMaxConnections = 100
)

// WSHandler streams committed sale events to websocket clients as JSON
// text frames. GET /ws?actions=deposit,harvest limits the stream to those
// actions. The stream is one-way; client frames other than control frames
// are ignored.
type WSHandler struct {
	mu       sync.Mutex
	feed     *host.Feed
	upgrader websocket.Upgrader
	conns    map[*websocket.Conn]struct{}
	metrics  *metrics.Metrics
	log      *log.Logger
}

// NewWSHandler creates a handler streaming from feed.
func NewWSHandler(feed *host.Feed, m *metrics.Metrics, logger *log.Logger) *WSHandler {
	return &WSHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns:   make(map[*websocket.Conn]struct{}),
		metrics: m,
		log:     logger,
	}
}

// ConnectionCount returns the number of connected clients.
func (h *WSHandler) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ConnectionCount() >= WSMaxConnections {
		http.Error(w, "too many stream clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		return
	}
	var actions []string
	if v := r.URL.Query().Get("actions"); v != "" {
		actions = strings.Split(v, ",")
	}
	sub := h.feed.Subscribe(actions...)

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.metrics.WSConnected(1)
	h.log.Debug("stream client connected", "remote", r.RemoteAddr, "actions", actions)

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, sub, done)

	sub.Unsubscribe()
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
	h.metrics.WSConnected(-1)
	h.log.Debug("stream client disconnected", "remote", r.RemoteAddr)
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *WSHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(WSMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(WSPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(WSPongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, sub *host.Subscription, done <-chan struct{}) {
	ping := time.NewTicker(WSPingInterval)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-sub.Chan():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(WSWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(WSWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Close disconnects every client.
func (h *WSHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
}
