package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/petalhouse/petalhouse-backend/pkg/logger"
)

const (
	// Rate limiting: 최대 메시지 수 (1초당)
	maxMessagesPerSecond = 10
)

// 피드 이벤트 유형
const (
	EventOrderCreated  = "order_created"
	EventStatusChanged = "order_status_changed"
	EventOrderEdited   = "order_edited"
	EventOrderDeleted  = "order_deleted"
	EventLowStock      = "low_stock"
)

// Event 관리자 피드로 전달되는 이벤트
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

// ClientMessage 클라이언트로부터 받은 메시지
type ClientMessage struct {
	Type   string   `json:"type"`   // subscribe, unsubscribe
	Events []string `json:"events"` // 비어 있으면 전체
}

// Client WebSocket 클라이언트
type Client struct {
	Hub           *Hub
	Conn          *Conn
	UserID        uint
	Send          chan []byte
	filter        map[string]bool // 구독 중인 이벤트 유형 (nil이면 전체)
	mu            sync.RWMutex
	MessageCount  int       // 최근 1초간 받은 메시지 수
	LastResetTime time.Time // 마지막 카운터 리셋 시간
	RateMu        sync.Mutex
}

func NewClient(hub *Hub, conn *Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 256),
	}
}

func (c *Client) wants(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter == nil || c.filter[eventType]
}

// Hub WebSocket 연결 관리자
type Hub struct {
	// 등록된 클라이언트들 (멀티 디바이스 지원)
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	eventType string
	payload   []byte
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *broadcastMessage, 1024),
	}
}

// Run Hub 실행
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("Admin feed client registered", map[string]interface{}{
				"user_id":        client.UserID,
				"total_sessions": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("Admin feed client unregistered", map[string]interface{}{
				"user_id":            client.UserID,
				"remaining_sessions": total,
			})

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(message.eventType) {
					continue
				}
				select {
				case client.Send <- message.payload:
				default:
					// Send 채널이 막혀있음 - 비동기로 정리
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"user_id": client.UserID,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish 모든 관리자 세션에 이벤트 전송 (버퍼가 가득 차면 버림)
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal feed event", err, map[string]interface{}{
			"type": event.Type,
		})
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{eventType: event.Type, payload: data}:
	default:
		logger.Warn("Broadcast channel full, event dropped", map[string]interface{}{
			"type": event.Type,
		})
	}
}

// Register 클라이언트 등록
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 클라이언트 등록 해제
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount 접속 중인 세션 수
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleClientMessage 클라이언트 메시지 처리
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	switch msg.Type {
	case "subscribe":
		if len(msg.Events) == 0 {
			client.filter = nil
			return
		}
		if client.filter == nil {
			client.filter = make(map[string]bool)
		}
		for _, e := range msg.Events {
			client.filter[e] = true
		}
	case "unsubscribe":
		if client.filter == nil {
			client.filter = map[string]bool{
				EventOrderCreated:  true,
				EventStatusChanged: true,
				EventOrderEdited:   true,
				EventOrderDeleted:  true,
				EventLowStock:      true,
			}
		}
		for _, e := range msg.Events {
			delete(client.filter, e)
		}
	default:
		logger.Warn("Unknown client message type", map[string]interface{}{
			"user_id": client.UserID,
			"type":    msg.Type,
		})
	}
}
