package chat

import (
	"context"
	"net/http"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/aquareto/aquareto-server/auth"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/logger"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/monitor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientEvent is the envelope for every inbound frame:
// `{event: "chat.start"}` / `{event: "chat.end"}` / `{event: "chat.send"}`.
type clientEvent struct {
	Event     string `json:"event"`
	ChannelId uint   `json:"channel_id"`
	Content   string `json:"content"`
	UUID      string `json:"uuid"`
}

// ServeWS upgrades the request to a WebSocket and runs the connection's
// read loop until it closes. Authentication mirrors middleware.Auth but
// reads the token via middleware.BearerToken, since browsers driving the
// `?access_token=` query form cannot set an Authorization header on the
// WS upgrade request.
func ServeWS(h *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := middleware.BearerToken(c)
		if raw == "" {
			middleware.AbortWithError(c, apperr.New(apperr.KindAuthentication, "missing_token"))
			return
		}
		claims, err := auth.VerifyJWT(raw)
		if err != nil {
			middleware.AbortWithError(c, apperr.Wrap(apperr.KindAuthentication, "invalid_token", err))
			return
		}
		token, err := model.GetOAuthTokenByJTI(claims.ID)
		if err != nil {
			middleware.AbortWithError(c, apperr.New(apperr.KindAuthentication, "invalid_token"))
			return
		}
		user, err := model.GetUserById(token.UserId)
		if err != nil || user.IsRestricted() {
			middleware.AbortWithError(c, apperr.New(apperr.KindAuthentication, "invalid_token"))
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Logger.Warn("chat websocket upgrade failed", zap.Error(err))
			return
		}

		monitor.ChatConnections.Inc()
		defer monitor.ChatConnections.Dec()

		conn := newConnection(ws, user.Id)
		runConnection(c.Request.Context(), h, conn)
	}
}

// runConnection drives a single connection's read loop until chat.end or
// the socket closes, dispatching chat.start/chat.send events.
func runConnection(ctx context.Context, h *Hub, conn *Connection) {
	defer func() {
		h.Unregister(conn)
		_ = conn.Close()
	}()

	started := false
	for {
		var evt clientEvent
		if err := conn.ReadJSON(&evt); err != nil {
			return
		}

		switch evt.Event {
		case "chat.start":
			if !started {
				h.Register(conn)
				started = true
			}
		case "chat.end":
			return
		case "chat.send":
			if !started {
				continue
			}
			_, err := Send(ctx, h, SendRequest{
				ChannelId: evt.ChannelId,
				SenderId:  conn.userID,
				Content:   evt.Content,
				UUID:      evt.UUID,
			})
			if err != nil {
				_ = conn.WriteJSON(map[string]any{"event": "chat.error", "error": err.Error()})
			}
		case "chat.channel.join":
			if err := Join(h, evt.ChannelId, conn.userID); err != nil {
				_ = conn.WriteJSON(map[string]any{"event": "chat.error", "error": err.Error()})
			}
		case "chat.channel.part":
			if err := Leave(h, evt.ChannelId, conn.userID); err != nil {
				_ = conn.WriteJSON(map[string]any{"event": "chat.error", "error": err.Error()})
			}
		}
	}
}
