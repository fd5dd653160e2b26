package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// UpgradeGuardMiddleware drops WebSocket upgrade requests for any path other
// than wsPath. The connection is closed without an HTTP reply.
func UpgradeGuardMiddleware(wsPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) && c.Request.URL.Path != wsPath {
			DropConnection(c)
			return
		}
		c.Next()
	}
}

// DropConnection hijacks and closes the client connection and aborts the
// chain. If the writer cannot be hijacked it answers 400 instead.
func DropConnection(c *gin.Context) {
	conn, _, err := c.Writer.Hijack()
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	_ = conn.Close()
	c.Abort()
}
