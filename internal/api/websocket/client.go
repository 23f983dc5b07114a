package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	mu      sync.RWMutex
	formats map[types.DeviceFormat]bool
}

func (c *Client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// wants reports whether msg passes the client's subscription.
func (c *Client) wants(msg Message) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.formats) == 0 {
		return true
	}
	data, ok := msg.Data.(DeviceImportedData)
	if !ok {
		return true
	}
	return c.formats[data.Device.Format]
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("remote_addr", c.remoteAddr()))
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var req SubscribeRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Type != "subscribe" {
		c.reply(NewMessage(MessageTypeError, map[string]string{
			"reason": "expected {\"type\":\"subscribe\",\"formats\":[...]}",
		}))
		return
	}

	formats := make(map[types.DeviceFormat]bool, len(req.Formats))
	for _, f := range req.Formats {
		formats[f] = true
	}
	c.mu.Lock()
	c.formats = formats
	c.mu.Unlock()

	c.logger.Debug("WebSocket client subscribed",
		zap.String("remote_addr", c.remoteAddr()),
		zap.Int("formats", len(formats)))
	c.reply(NewMessage(MessageTypeSubscribed, req.Formats))
}

// reply sends msg to this client only.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if !c.hub.sendTo(c, data) {
		c.logger.Debug("WebSocket reply dropped",
			zap.String("remote_addr", c.remoteAddr()),
			zap.String("message_type", string(msg.Type)))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and registers the connection with the hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: hub.logger,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
