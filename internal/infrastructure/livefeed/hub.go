package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/capture"
	"jan-server/services/vision-api/internal/domain/session"
	"jan-server/services/vision-api/internal/infrastructure/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	capturesTopic = "captures"
)

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	topic     string
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub fans status and capture notifications out to websocket subscribers.
// Subscribers that cannot keep up are disconnected.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*client]struct{}
	buffer  int
	log     zerolog.Logger
	upgrade websocket.Upgrader
}

// NewHub creates a hub whose subscribers buffer up to buffer messages.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		topics: make(map[string]map[*client]struct{}),
		buffer: buffer,
		log:    log.With().Str("component", "livefeed-hub").Logger(),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Push implements session.StatusSink.
func (h *Hub) Push(_ context.Context, status session.Status) {
	h.broadcast(sessionTopic(status.SessionID), status)
}

// BroadcastCapture implements capture.Broadcaster.
func (h *Hub) BroadcastCapture(n capture.Notification) {
	h.broadcast(capturesTopic, map[string]any{"message": n})
}

// Subscribers reports the number of clients on a session's status topic.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[sessionTopic(sessionID)])
}

// ServeSession upgrades the request and streams status notifications for the
// session until the peer disconnects.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) error {
	return h.serve(w, r, sessionTopic(sessionID))
}

// ServeCaptures upgrades the request and streams capture notifications.
func (h *Hub) ServeCaptures(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, capturesTopic)
}

// Reject upgrades the request, sends a single {"error": message} frame and
// closes the connection.
func (h *Hub) Reject(w http.ResponseWriter, r *http.Request, message string) error {
	conn, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]string{"error": message}); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}

// CloseSession disconnects every status subscriber of the session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	clients := h.topics[sessionTopic(sessionID)]
	delete(h.topics, sessionTopic(sessionID))
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	topics := h.topics
	h.topics = make(map[string]map[*client]struct{})
	h.mu.Unlock()
	for _, clients := range topics {
		for c := range clients {
			c.close()
		}
	}
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := h.add(conn, topic)
	h.log.Debug().Str("topic", topic).Str("remote", r.RemoteAddr).Msg("subscriber connected")

	go h.writePump(c)
	h.readPump(c)

	h.remove(c)
	h.log.Debug().Str("topic", topic).Str("remote", r.RemoteAddr).Msg("subscriber disconnected")
	return nil
}

func (h *Hub) add(conn *websocket.Conn, topic string) *client {
	c := &client{conn: conn, send: make(chan []byte, h.buffer), topic: topic}
	h.mu.Lock()
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*client]struct{})
		h.topics[topic] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if set, ok := h.topics[c.topic]; ok {
		if _, member := set[c]; member {
			delete(set, c)
			if len(set) == 0 {
				delete(h.topics, c.topic)
			}
		}
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) broadcast(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("topic", topic).Msg("marshal live feed payload")
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.topics[topic] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("topic", topic).Msg("dropping slow subscriber")
		metrics.RecordSinkFailure("live_feed")
		h.remove(c)
	}
}

// readPump drains inbound frames so control messages are processed. It
// returns once the peer goes away or the write side closes the connection.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func sessionTopic(sessionID string) string {
	return "session:" + sessionID
}
