package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024
)

// Conn WebSocket 연결 래퍼
type Conn struct {
	*websocket.Conn
}

// ReadPump 클라이언트로부터 메시지 읽기
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("Admin feed read error", err, map[string]interface{}{
					"admin_id": c.UserID,
				})
			}
			break
		}

		logger.Debug("Admin feed control message received", map[string]interface{}{
			"admin_id": c.UserID,
			"bytes":    len(message),
		})

		// 구독할 이벤트 유형 변경 (subscribe / unsubscribe)
		c.Hub.HandleClientMessage(c, message)
	}
}

// WritePump 클라이언트로 메시지 쓰기
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub가 채널을 닫음
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 이벤트 하나당 텍스트 프레임 하나, 밀린 이벤트는 이어서 전송
			pending := append([][]byte{message}, drain(c.Send)...)
			for _, event := range pending {
				if err := c.Conn.WriteMessage(websocket.TextMessage, event); err != nil {
					logger.Error("Failed to write feed event", err, map[string]interface{}{
						"admin_id": c.UserID,
						"pending":  len(pending),
					})
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("Admin feed ping failed, closing", map[string]interface{}{
					"admin_id": c.UserID,
				})
				return
			}
		}
	}
}

// drain 채널에 이미 쌓인 메시지만 꺼냄 (대기하지 않음)
func drain(ch chan []byte) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}
