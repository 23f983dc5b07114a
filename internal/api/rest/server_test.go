package rest

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/api/websocket"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/config"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/devices"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/interfaces"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/storage"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	ioddFixture = "Acme-DS100-20240115-IODD1.1.xml"
	edsFixture  = "Acme-FS200.eds"
)

type testLifecycle struct {
	cfg     *config.Config
	manager *devices.Manager
}

func (l *testLifecycle) Config() *config.Config             { return l.cfg }
func (l *testLifecycle) DeviceManager() *devices.Manager    { return l.manager }
func (l *testLifecycle) Shutdown(ctx context.Context) error { return nil }

func (l *testLifecycle) GetCurrentStatus(ctx context.Context) interfaces.SystemStatus {
	list, _ := l.manager.List(ctx)
	return interfaces.SystemStatus{State: "RUNNING", StorageDriver: "memory", DeviceCount: len(list)}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Driver = "memory"

	cat, err := catalog.Default()
	require.NoError(t, err)
	logger := zap.NewNop()

	manager, err := devices.NewManager(
		devices.NewLoader(cat, cfg.Ingest.Limits(), time.Minute, logger),
		devices.NewComposer(cat, logger),
		storage.NewMemoryStore(),
		devices.ManagerOptions{Workers: 2, DebugValidate: true},
		logger,
	)
	require.NoError(t, err)

	return NewServer(cfg, &testLifecycle{cfg: cfg, manager: manager}, logger, websocket.NewHub(logger))
}

func fixture(t *testing.T, pkg, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", pkg, "testdata", name))
	require.NoError(t, err)
	return data
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func importRaw(t *testing.T, s *Server, name string, data []byte) devices.ImportResult {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices?filename="+name, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/octet-stream")
	w := do(t, s, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res devices.ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/system/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"RUNNING"`)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/ws/status", nil))
	assert.JSONEq(t, `{"connected_clients":0}`, w.Body.String())
}

func TestDeviceLifecycle(t *testing.T) {
	s := newTestServer(t)
	res := importRaw(t, s, ioddFixture, fixture(t, "iodd", ioddFixture))

	assert.Equal(t, "DS100 Distance Sensor", res.Device.DeviceName)
	assert.NotEmpty(t, res.Warnings)
	base := "/api/v1/devices/" + res.Device.ID.String()

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Devices []types.DeviceSummary `json:"devices"`
		Count   int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, res.Device.ID, list.Devices[0].ID)

	w = do(t, s, httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var d types.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Len(t, d.Menus, 5)

	w = do(t, s, httptest.NewRequest(http.MethodGet, base+"/schema", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var composed struct {
		Schema   types.ConfigSchema `json:"schema"`
		Warnings []types.Issue      `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &composed))
	assert.Equal(t, res.Device.ID.String(), composed.Schema.DeviceID)
	assert.NotEmpty(t, composed.Warnings)

	first := w.Body.String()
	w = do(t, s, httptest.NewRequest(http.MethodGet, base+"/schema", nil))
	assert.Equal(t, first, w.Body.String())

	w = do(t, s, httptest.NewRequest(http.MethodDelete, base, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "DEVICE_NOT_FOUND")
}

func TestImportMultipartBatch(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range map[string][]byte{
		ioddFixture: fixture(t, "iodd", ioddFixture),
		edsFixture:  fixture(t, "eds", edsFixture),
		"bad.eds":   []byte("[File]\n"),
	} {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(t, s, req)
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	var res struct {
		Imported int `json:"imported"`
		Failed   int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, w.Body.String(), "MISSING_IDENTITY")
}

func TestImportRejects(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		url    string
		body   []byte
		status int
		code   string
	}{
		{"no filename", "/api/v1/devices", []byte("x"), http.StatusBadRequest, "INVALID_UPLOAD"},
		{"bad extension", "/api/v1/devices?filename=a.pdf", []byte("x"), http.StatusUnsupportedMediaType, "UNSUPPORTED_EXTENSION"},
		{"not utf8", "/api/v1/devices?filename=a.eds", []byte{'[', 0xff, 0xfe}, http.StatusUnprocessableEntity, "INVALID_ENCODING"},
		{"malformed", "/api/v1/devices?filename=a.xml", []byte("<IODevice><ProfileBody>"), http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT"},
		{"too large", "/api/v1/devices?filename=a.eds", bytes.Repeat([]byte("$"), 16<<20+1), http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.url, bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/octet-stream")
			w := do(t, s, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestAssetsAndProcessData(t *testing.T) {
	s := newTestServer(t)
	res := importRaw(t, s, edsFixture, fixture(t, "eds", edsFixture))
	base := "/api/v1/devices/" + res.Device.ID.String()

	w := do(t, s, httptest.NewRequest(http.MethodGet, base+"/assets/dev.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = do(t, s, httptest.NewRequest(http.MethodGet, base+"/assets/none.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	decode := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, base+"/process-data/decode", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		return do(t, s, req)
	}

	w = decode(`{"direction":"input","data":"000100c8"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"label":"On"`)

	assert.Equal(t, http.StatusBadRequest, decode(`{"direction":"sideways","data":"00"}`).Code)
	assert.Equal(t, http.StatusBadRequest, decode(`{"direction":"input","data":"zz"}`).Code)
	assert.Equal(t, http.StatusBadRequest, decode(`{"direction":"input","data":"00"}`).Code)
	assert.Equal(t, http.StatusNotFound, decode(`{"direction":"input","block_id":"nope","data":"00"}`).Code)
}

func TestInvalidDeviceID(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/devices/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/v1/devices/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
