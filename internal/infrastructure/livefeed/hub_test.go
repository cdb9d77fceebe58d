package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/vision-api/internal/domain/capture"
	"jan-server/services/vision-api/internal/domain/session"
)

func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeSession(w, r, strings.TrimPrefix(r.URL.Path, "/sessions/"))
	})
	mux.HandleFunc("/captures", func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeCaptures(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func topicSize(h *Hub, topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func TestHubPushesStatusToSessionSubscribers(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	srv := newHubServer(t, hub)

	conn := dial(t, srv, "/sessions/vsess_a")
	other := dial(t, srv, "/sessions/vsess_b")
	require.Eventually(t, func() bool {
		return hub.Subscribers("vsess_a") == 1 && hub.Subscribers("vsess_b") == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Push(context.Background(), session.Status{SessionID: "vsess_a", FrameNumber: 7, Status: session.StatusRunning})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got session.Status
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "vsess_a", got.SessionID)
	assert.Equal(t, uint64(7), got.FrameNumber)
	assert.Equal(t, "Running", got.Status)

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "other session must not receive the status")
}

func TestHubBroadcastsCapturesWrapped(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	srv := newHubServer(t, hub)

	conn := dial(t, srv, "/captures")
	require.Eventually(t, func() bool { return topicSize(hub, capturesTopic) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastCapture(capture.Notification{DeviceID: "cam-1", Direction: "Top to Bottom", Label: "car"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Message capture.Notification `json:"message"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "cam-1", got.Message.DeviceID)
	assert.Equal(t, "Top to Bottom", got.Message.Direction)
}

func TestHubCloseSessionDisconnects(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	srv := newHubServer(t, hub)

	conn := dial(t, srv, "/sessions/vsess_a")
	require.Eventually(t, func() bool { return hub.Subscribers("vsess_a") == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.CloseSession("vsess_a")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Zero(t, hub.Subscribers("vsess_a"))
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(1, zerolog.Nop())
	c := &client{send: make(chan []byte, 1), topic: capturesTopic}
	hub.topics[capturesTopic] = map[*client]struct{}{c: {}}

	hub.BroadcastCapture(capture.Notification{DeviceID: "cam-1"})
	hub.BroadcastCapture(capture.Notification{DeviceID: "cam-1"})

	assert.Zero(t, topicSize(hub, capturesTopic))
	_, open := <-c.send
	assert.True(t, open, "buffered message is still delivered")
	_, open = <-c.send
	assert.False(t, open)
}

func TestHubPushWithoutSubscribers(t *testing.T) {
	hub := NewHub(0, zerolog.Nop())
	assert.NotPanics(t, func() {
		hub.Push(context.Background(), session.Status{SessionID: "missing"})
	})
	hub.Close()
}

func TestHubRejectSendsErrorAndCloses(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Reject(w, r, "Session not found")
	}))
	defer srv.Close()

	conn := dial(t, srv, "/")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "Session not found", msg["error"])

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}
