package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apperrors "github.com/petalhouse/petalhouse-backend/internal/errors"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
	ws "github.com/petalhouse/petalhouse-backend/internal/websocket"
)

// FeedController streams order events to the admin console.
type FeedController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewFeedController(hub *ws.Hub, allowedOrigins []string) *FeedController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &FeedController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 브라우저 외 클라이언트는 Origin 헤더가 없음
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Connect upgrades the request to a websocket subscribed to the live feed.
// 쿼리 파라미터로 토큰을 받지만, 로깅하지 않음
// GET /api/v1/admin/feed
func (ctrl *FeedController) Connect(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, userID)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Info("Admin feed connected", map[string]interface{}{
		"user_id": userID,
		"clients": ctrl.hub.ClientCount(),
	})
}
