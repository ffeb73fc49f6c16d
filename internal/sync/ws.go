package sync

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // clients are authenticated by token, not origin
	},
}

func wsToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("access_token")
}

// WSHandler upgrades authenticated requests and streams the caller's shelf
// events. The token comes from the Authorization header or ?access_token=.
func WSHandler(hub *Hub, authFn AuthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authFn(c.Request.Context(), wsToken(c))
		if err != nil || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		_ = ws.WriteMessage(websocket.TextMessage, welcome("websocket"))
		hub.AddWS(ws, userID)
		hub.log.Info("ws client connected", zap.String("user_id", userID))

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		hub.log.Info("ws client disconnected", zap.String("user_id", userID))
	}
}
