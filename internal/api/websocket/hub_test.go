package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)
	return hub, conn
}

type received struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg received
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcastsCatalogEvents(t *testing.T) {
	hub, conn := startHub(t)

	id := uuid.New()
	hub.DeviceImported(types.DeviceSummary{ID: id, Format: types.FormatIODD, DeviceName: "DS100"}, 3)
	hub.DeviceDeleted(id)

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeDeviceImported, msg.Type)
	var imported DeviceImportedData
	require.NoError(t, json.Unmarshal(msg.Data, &imported))
	assert.Equal(t, "DS100", imported.Device.DeviceName)
	assert.Equal(t, 3, imported.Warnings)

	msg = readMessage(t, conn)
	assert.Equal(t, MessageTypeDeviceDeleted, msg.Type)
	assert.JSONEq(t, `{"device_id":"`+id.String()+`"}`, string(msg.Data))
}

func TestHubSubscriptionFiltersFormats(t *testing.T) {
	hub, conn := startHub(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","formats":["eds"]}`)))
	assert.Equal(t, MessageTypeSubscribed, readMessage(t, conn).Type)

	hub.DeviceImported(types.DeviceSummary{Format: types.FormatIODD, DeviceName: "skipped"}, 0)
	hub.DeviceImported(types.DeviceSummary{Format: types.FormatEDS, DeviceName: "FS200"}, 0)

	msg := readMessage(t, conn)
	var imported DeviceImportedData
	require.NoError(t, json.Unmarshal(msg.Data, &imported))
	assert.Equal(t, "FS200", imported.Device.DeviceName)
}

func TestHubRejectsUnknownRequests(t *testing.T) {
	_, conn := startHub(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth"}`)))
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)
}

func TestReplyAfterHubStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []byte, 1), logger: zap.NewNop()}
	hub.register <- client

	assert.True(t, hub.sendTo(client, []byte("first")))
	assert.False(t, hub.sendTo(client, []byte("second")), "buffer full")
	assert.Equal(t, []byte("first"), <-client.send)

	cancel()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open)
	assert.NotPanics(t, func() {
		client.reply(NewMessage(MessageTypeError, map[string]string{"reason": "late"}))
	})
	assert.False(t, hub.sendTo(client, []byte("late")))
}
