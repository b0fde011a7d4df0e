package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"k8s.io/klog/v2"

	"github.com/makeasinger/moviegen/internal/logging"
	"github.com/makeasinger/moviegen/internal/service"
	ws "github.com/makeasinger/moviegen/internal/websocket"
)

// NewStreamHandler upgrades GET /ws/sessions/:id and pushes state and
// notification messages for the caller's session.
func NewStreamHandler(svc *service.SessionService, hub *ws.Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("id")
		userID, _ := c.Locals("userId").(string)

		sess, err := svc.Get(userID, sessionID)
		if err != nil {
			klog.V(logging.WARNING).InfoS("Rejecting stream for unknown session", "sessionID", sessionID)
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session not found"))
			return
		}

		view := sess.View()
		hub.HandleConnection(c, sessionID, &view)
	})
}

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
