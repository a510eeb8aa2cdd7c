package hub

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// refreshCommand 客户端请求重发当前快照
	refreshCommand = "refresh"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSClient websocket 订阅者
type WSClient struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewWSClient 创建 websocket 订阅者，buffer 为发送队列长度
func NewWSClient(h *Hub, conn *websocket.Conn, buffer int, logger *zap.Logger) *WSClient {
	if buffer <= 0 {
		buffer = 16
	}
	return &WSClient{
		id:     uuid.New().String(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// ID 订阅者标识
func (c *WSClient) ID() string { return c.id }

// Send 非阻塞入队；队列已满或连接已关闭时返回 false
func (c *WSClient) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close 通知写协程退出并关闭连接
func (c *WSClient) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ReadPump 读取客户端消息，连接断开时注销
func (c *WSClient) ReadPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("WebSocket read error", zap.String("subscriber_id", c.id), zap.Error(err))
			}
			return
		}
		if strings.TrimSpace(string(message)) == refreshCommand {
			c.hub.SendCurrent(c.id)
		}
	}
}

// WritePump 发送队列中的快照并定期 ping
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
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

// Handler 处理 websocket 升级请求
type Handler struct {
	hub    *Hub
	buffer int
	logger *zap.Logger
}

// NewHandler 创建 /ws/monitor 处理器
func NewHandler(h *Hub, buffer int, logger *zap.Logger) *Handler {
	return &Handler{hub: h, buffer: buffer, logger: logger}
}

// ServeHTTP 升级连接，先注册（投递当前快照）后启动读写协程
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewWSClient(h.hub, conn, h.buffer, h.logger)
	go client.WritePump()
	h.hub.Register(client)
	go client.ReadPump()
}
