package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 广播主题
const (
	TopicSpaceChanges = "parking-spaces-changes"   // 单车位变更流
	TopicStatistic    = "parking-spaces-statistic" // 全场统计流
	TopicGateway      = "gateway"                  // 传感器网关双工通道
)

// MessageType WebSocket 消息类型
const (
	MsgTypeSpaceUpdate = "space_update" // 车位快照
	MsgTypeStatistic   = "statistic"    // 统计快照
	MsgTypeCommand     = "command"      // 下发给网关的指令
)

// Message WebSocket 消息结构
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type topicMessage struct {
	topic string
	data  []byte
}

// Client WebSocket 客户端，订阅单个主题
type Client struct {
	hub       *Hub
	topic     string
	conn      *websocket.Conn
	send      chan []byte
	onMessage func([]byte) // 入站消息回调（网关通道使用），可为 nil
}

// Hub WebSocket 连接管理中心，按主题维护订阅者
type Hub struct {
	logger     *zap.Logger
	clients    map[string]map[*Client]bool
	broadcast  chan topicMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	// 订阅即推送的初始数据提供者（按主题）
	subscribeHooks map[string]func() []byte
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:         logger,
		clients:        make(map[string]map[*Client]bool),
		broadcast:      make(chan topicMessage, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		subscribeHooks: make(map[string]func() []byte),
	}
}

// SetSubscribeHook 设置某主题的订阅即推送回调，新订阅者注册后立即收到其返回值
// Hub 运行期间也可设置或替换
func (h *Hub) SetSubscribeHook(topic string, hook func() []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribeHooks[topic] = hook
}

// Run 运行 Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			total := len(h.clients[client.topic])
			h.mu.Unlock()
			h.logger.Info("WebSocket client subscribed",
				zap.String("topic", client.topic), zap.Int("total_clients", total))

			h.sendInitData(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.topic][client]; ok {
				delete(h.clients[client.topic], client)
				close(client.send)
			}
			total := len(h.clients[client.topic])
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected",
				zap.String("topic", client.topic), zap.Int("total_clients", total))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.topic] {
				select {
				case client.send <- msg.data:
				default:
					// 慢消费者不允许拖住广播，直接踢掉
					close(client.send)
					delete(h.clients[msg.topic], client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// sendInitData 给新订阅者推送主题的初始数据
func (h *Hub) sendInitData(client *Client) {
	h.mu.RLock()
	hook := h.subscribeHooks[client.topic]
	h.mu.RUnlock()
	if hook == nil {
		return
	}

	data := hook()
	if data == nil {
		h.logger.Warn("Subscribe hook returned no data", zap.String("topic", client.topic))
		return
	}

	select {
	case client.send <- data:
	default:
		h.logger.Warn("Failed to send init data, client buffer full",
			zap.String("topic", client.topic))
	}
}

// Broadcast 向主题广播原始数据
func (h *Hub) Broadcast(topic string, data []byte) {
	h.broadcast <- topicMessage{topic: topic, data: data}
}

// BroadcastMessage 向主题广播结构化消息
func (h *Hub) BroadcastMessage(topic, msgType string, data interface{}) {
	msg := Message{Type: msgType, Data: data}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}
	h.Broadcast(topic, jsonData)
}

// ClientCount 获取主题订阅者数量
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// NewClient 创建客户端，onMessage 处理入站消息，只读主题传 nil
func NewClient(hub *Hub, topic string, conn *websocket.Conn, onMessage func([]byte)) *Client {
	return &Client{
		hub:       hub,
		topic:     topic,
		conn:      conn,
		send:      make(chan []byte, 256),
		onMessage: onMessage,
	}
}

// Register 注册客户端
func (c *Client) Register() {
	c.hub.register <- c
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	c.hub.unregister <- c
}

// ReadPump 读取消息；连接断开即注销，保证订阅表不会无限增长
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

// WritePump 发送消息
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}
