package v1

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/vision-api/internal/domain/capture"
	"jan-server/services/vision-api/internal/domain/crossing"
	"jan-server/services/vision-api/internal/domain/session"
	"jan-server/services/vision-api/internal/infrastructure/devices"
	"jan-server/services/vision-api/internal/infrastructure/livefeed"
	"jan-server/services/vision-api/internal/infrastructure/storage"
	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
)

type fakeService struct {
	sessions     map[string]*session.Session
	order        []string
	initialized  [][]session.Descriptor
	startFn      func(ctx context.Context, id string) error
	stopFn       func(ctx context.Context, id string) error
	deleteFn     func(ctx context.Context, id string) error
	initializeFn func(ctx context.Context, descriptors []session.Descriptor) (int, error)
}

func newFakeService(sessions ...*session.Session) *fakeService {
	f := &fakeService{sessions: map[string]*session.Session{}}
	for _, s := range sessions {
		f.sessions[s.ID] = s
		f.order = append(f.order, s.ID)
	}
	return f
}

func (f *fakeService) Initialize(ctx context.Context, descriptors []session.Descriptor) (int, error) {
	f.initialized = append(f.initialized, descriptors)
	if f.initializeFn != nil {
		return f.initializeFn(ctx, descriptors)
	}
	return len(descriptors), nil
}

func (f *fakeService) List(context.Context) ([]session.Summary, error) {
	out := make([]session.Summary, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.sessions[id].Pipeline.Summary())
	}
	return out, nil
}

func (f *fakeService) Get(_ context.Context, id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s, nil
}

func (f *fakeService) GetByDeviceID(_ context.Context, deviceID string) (*session.Session, error) {
	for _, s := range f.sessions {
		if s.Descriptor.DeviceID == deviceID {
			return s, nil
		}
	}
	return nil, session.ErrNotFound
}

func (f *fakeService) Start(ctx context.Context, id string) error {
	if f.startFn != nil {
		return f.startFn(ctx, id)
	}
	return nil
}

func (f *fakeService) Stop(ctx context.Context, id string) error {
	if f.stopFn != nil {
		return f.stopFn(ctx, id)
	}
	return nil
}

func (f *fakeService) Restart(context.Context, string) error { return nil }

func (f *fakeService) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeService) Clear(context.Context) error { return nil }

type fakeSource struct {
	frames [][]byte
	closed bool
}

func (s *fakeSource) Next(ctx context.Context) ([]byte, error) {
	if len(s.frames) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeOpener struct {
	openFn func(ctx context.Context, uri string) (session.FrameSource, error)
}

func (o *fakeOpener) Open(ctx context.Context, uri string) (session.FrameSource, error) {
	return o.openFn(ctx, uri)
}

type fakeCatalog struct {
	cfg     devices.Config
	err     error
	syncErr error
}

func (c *fakeCatalog) Current(context.Context) (devices.Config, error) { return c.cfg, c.err }

func (c *fakeCatalog) Sync(context.Context) (devices.Config, error) {
	return c.cfg, c.syncErr
}

type fakeCaptures struct {
	filters []capture.Filter
	records []capture.Record
}

func (f *fakeCaptures) List(_ context.Context, filter capture.Filter) ([]capture.Record, error) {
	f.filters = append(f.filters, filter)
	return f.records, nil
}

func (f *fakeCaptures) Recent(context.Context, int) ([]capture.Record, error) {
	return nil, nil
}

type fakeFrames struct {
	data map[string][]byte
}

func (f *fakeFrames) LoadFrame(_ context.Context, frameID string) ([]byte, string, error) {
	d, ok := f.data[frameID]
	if !ok {
		return nil, "", storage.ErrFrameNotFound
	}
	return d, "image/jpeg", nil
}

type fakeHub struct {
	closed []string
}

func (h *fakeHub) CloseSession(id string) {
	h.closed = append(h.closed, id)
}

func (*fakeHub) ServeSession(w http.ResponseWriter, _ *http.Request, id string) error {
	_, err := io.WriteString(w, "session:"+id)
	return err
}

func (*fakeHub) ServeCaptures(w http.ResponseWriter, _ *http.Request) error {
	_, err := io.WriteString(w, "captures")
	return err
}

func (*fakeHub) Reject(w http.ResponseWriter, _ *http.Request, message string) error {
	w.WriteHeader(http.StatusNotFound)
	_, err := io.WriteString(w, message)
	return err
}

type testEnv struct {
	service  *fakeService
	opener   *fakeOpener
	catalog  *fakeCatalog
	captures *fakeCaptures
	frames   *fakeFrames
	hub      *fakeHub
	engine   *gin.Engine
}

func newPipelineSession(id, deviceID string) *session.Session {
	desc := session.Descriptor{DeviceID: deviceID, DeviceName: "Gate " + deviceID, SourceURI: "rtsp://" + deviceID}
	return &session.Session{
		ID:         id,
		Descriptor: desc,
		Pipeline:   session.NewPipeline(id, desc, session.Dependencies{Logger: zerolog.Nop()}),
	}
}

func newTestEnv(t *testing.T, sessions ...*session.Session) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		service: newFakeService(sessions...),
		opener: &fakeOpener{openFn: func(context.Context, string) (session.FrameSource, error) {
			return &fakeSource{frames: [][]byte{[]byte("jpeg-1"), []byte("jpeg-2")}}, nil
		}},
		catalog:  &fakeCatalog{},
		captures: &fakeCaptures{},
		frames:   &fakeFrames{data: map[string][]byte{"2024-05-01/abc": []byte("stored")}},
		hub:      &fakeHub{},
	}
	provider := handlers.NewProvider(env.service, env.opener, env.catalog, env.captures, env.frames, env.hub, zerolog.Nop())

	env.engine = gin.New()
	NewRoutes(provider).Register(env.engine, nil)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestListSessionsMergesDeviceConfig(t *testing.T) {
	env := newTestEnv(t, newPipelineSession("vsess_1", "cam-1"), newPipelineSession("vsess_2", "cam-9"))
	env.catalog.cfg = devices.Config{Devices: []session.Descriptor{
		{DeviceID: "cam-1", DeviceName: "Gate cam-1", Metadata: map[string]any{"device_type": "vehicle"}},
		{DeviceID: "cam-2", DeviceName: "Unregistered", Metadata: map[string]any{}},
	}}

	w := env.do(http.MethodGet, "/v1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 3)

	assert.Equal(t, "cam-1", rows[0]["device_id"])
	assert.Equal(t, "vehicle", rows[0]["device_type"])
	assert.Equal(t, "vsess_1", rows[0]["session_id"])
	assert.Equal(t, "stopped", rows[0]["status"])
	assert.Equal(t, false, rows[0]["running"])

	assert.Equal(t, "cam-2", rows[1]["device_id"])
	assert.NotContains(t, rows[1], "session_id")

	assert.Equal(t, "vsess_2", rows[2]["session_id"])
}

func TestListSessionsWithoutDeviceConfig(t *testing.T) {
	env := newTestEnv(t, newPipelineSession("vsess_1", "cam-1"))
	env.catalog.err = errors.New("vault broken")

	w := env.do(http.MethodGet, "/v1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "vsess_1", rows[0]["session_id"])
}

func TestSessionActionsMapErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{name: "start ok", path: "/v1/sessions/vsess_1/start", status: http.StatusOK},
		{name: "unknown session", path: "/v1/sessions/nope/start", err: session.ErrNotFound, status: http.StatusNotFound},
		{name: "already running", path: "/v1/sessions/vsess_1/start", err: session.ErrAlreadyRunning, status: http.StatusConflict},
		{name: "already stopped", path: "/v1/sessions/vsess_1/stop", err: session.ErrAlreadyStopped, status: http.StatusConflict},
		{
			name:   "bad geometry",
			path:   "/v1/sessions/vsess_1/start",
			err:    &session.ConfigurationError{SessionID: "vsess_1", Err: crossing.ErrGeometryMissing},
			status: http.StatusBadRequest,
		},
		{
			name:   "source unreachable",
			path:   "/v1/sessions/vsess_1/start",
			err:    &session.SourceOpenError{URI: "rtsp://x", Err: errors.New("timeout")},
			status: http.StatusBadGateway,
		},
		{name: "unexpected", path: "/v1/sessions/vsess_1/stop", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			fail := func(context.Context, string) error { return tt.err }
			env.service.startFn = fail
			env.service.stopFn = fail

			w := env.do(http.MethodPost, tt.path, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestStartResponseBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/sessions/vsess_1/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"session_id":"vsess_1","status":"Started"}`, w.Body.String())
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t)
	env.service.deleteFn = func(_ context.Context, id string) error {
		if id == "missing" {
			return session.ErrNotFound
		}
		return nil
	}

	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/v1/sessions/vsess_1", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/v1/sessions/missing", "").Code)
	assert.Equal(t, []string{"vsess_1"}, env.hub.closed, "only the deleted session loses its subscribers")
}

func TestInitializeSessions(t *testing.T) {
	env := newTestEnv(t)

	body := `[{"device_id": "cam-1", "device_name": "Gate", "source": "rtsp://cam-1",
		"horizontal_line_points": "[{\"x\":0,\"y\":360},{\"x\":1280,\"y\":360}]",
		"vertical_line_points": "[{\"x\":640,\"y\":0},{\"x\":640,\"y\":720}]"}]`
	w := env.do(http.MethodPost, "/v1/sessions/initialize", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, env.service.initialized, 1)
	got := env.service.initialized[0]
	require.Len(t, got, 1)
	assert.Equal(t, "rtsp://cam-1", got[0].SourceURI)
	assert.Len(t, got[0].HorizontalLine.Points, 2)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/v1/sessions/initialize", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/v1/sessions/initialize", `{"devices": 3}`).Code)
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t, newPipelineSession("vsess_1", "cam-1"))

	w := env.do(http.MethodGet, "/v1/sessions/vsess_1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var summary session.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "cam-1", summary.DeviceID)
	assert.False(t, summary.Running)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/sessions/nope", "").Code)
}

func TestSnapshotOpensStoppedSource(t *testing.T) {
	env := newTestEnv(t, newPipelineSession("vsess_1", "cam-1"))
	var opened *fakeSource
	env.opener.openFn = func(context.Context, string) (session.FrameSource, error) {
		opened = &fakeSource{frames: [][]byte{[]byte("first")}}
		return opened, nil
	}

	w := env.do(http.MethodGet, "/v1/sessions/vsess_1/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "first", w.Body.String())
	require.NotNil(t, opened)
	assert.True(t, opened.closed)
}

func TestSnapshotSourceFailure(t *testing.T) {
	env := newTestEnv(t, newPipelineSession("vsess_1", "cam-1"))
	env.opener.openFn = func(context.Context, string) (session.FrameSource, error) {
		return nil, errors.New("connection refused")
	}

	assert.Equal(t, http.StatusBadGateway, env.do(http.MethodGet, "/v1/sessions/vsess_1/snapshot", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/sessions/nope/snapshot", "").Code)
}

func TestFeedStreamsMultipartJPEG(t *testing.T) {
	env := newTestEnv(t, newPipelineSession("vsess_1", "cam-1"))
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/sessions/vsess_1/feed", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "--frame\r\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Content-Type: image/jpeg\r\n", line)
}

func TestEventsQuery(t *testing.T) {
	env := newTestEnv(t)
	env.captures.records = []capture.Record{{ID: "evt_1", DeviceID: "cam-1"}}

	w := env.do(http.MethodGet, "/v1/events?device_id=cam-1&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.captures.filters, 1)
	assert.Equal(t, capture.Filter{DeviceID: "cam-1", Limit: 5}, env.captures.filters[0])

	var resp struct {
		Object string           `json:"object"`
		Data   []capture.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	assert.Len(t, resp.Data, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/v1/events?limit=abc", "").Code)

	w = env.do(http.MethodGet, "/v1/events/recent", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"object":"list","data":[]}`, w.Body.String())
}

func TestFrameDownload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/v1/frames/2024-05-01/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stored", w.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/frames/2024-05-01/zzz", "").Code)
}

func TestDevicesRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.cfg = devices.Config{
		Payload: map[string]any{"devices": []any{map[string]any{"device_id": "cam-1"}}},
		Devices: []session.Descriptor{{DeviceID: "cam-1"}},
	}

	w := env.do(http.MethodGet, "/v1/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"devices":[{"device_id":"cam-1"}]}`, w.Body.String())

	w = env.do(http.MethodPost, "/v1/devices/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.service.initialized, 1)
	assert.Equal(t, "cam-1", env.service.initialized[0][0].DeviceID)

	env.catalog.syncErr = devices.ErrSyncUnavailable
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/v1/devices/sync", "").Code)

	env.catalog.err = errors.New("corrupt vault")
	assert.Equal(t, http.StatusInternalServerError, env.do(http.MethodGet, "/v1/devices", "").Code)
}

func TestLiveRoutes(t *testing.T) {
	env := newTestEnv(t, newPipelineSession("vsess_1", "cam-1"))

	assert.Equal(t, "session:vsess_1", env.do(http.MethodGet, "/v1/ws/sessions/vsess_1", "").Body.String())
	w := env.do(http.MethodGet, "/v1/ws/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Session not found", w.Body.String())
	assert.Equal(t, "captures", env.do(http.MethodGet, "/v1/ws/captures", "").Body.String())
}

func TestDeviceSchemaRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/v1/devices/schema", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vertical_line_points")
}

func TestDeleteSessionDisconnectsStatusSubscribers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := newFakeService(newPipelineSession("vsess_1", "cam-1"))
	hub := livefeed.NewHub(8, zerolog.Nop())
	provider := handlers.NewProvider(service, &fakeOpener{}, &fakeCatalog{}, &fakeCaptures{}, &fakeFrames{}, hub, zerolog.Nop())

	engine := gin.New()
	NewRoutes(provider).Register(engine, nil)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws/sessions/vsess_1", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("vsess_1") == 1 }, 2*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/vsess_1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Zero(t, hub.Subscribers("vsess_1"))
}
