package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionHeader = "X-Session-ID"
	SessionIDKey  = "session_id"

	maxSessionIDLength = 64
)

// Session attaches the guest session id to the request. Callers without one
// get a fresh id, echoed back in the response header so the client can keep
// using the same guest cart.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)
		if sessionID == "" || len(sessionID) > maxSessionIDLength {
			sessionID = uuid.NewString()
			GetLoggerFromContext(c).Debug("Issued guest session", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
		}
		c.Set(SessionIDKey, sessionID)
		c.Header(SessionHeader, sessionID)
		c.Next()
	}
}

// GetSessionID extracts the guest session id from context
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
