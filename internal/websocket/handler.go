package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/famfin/internal/auth"
)

// HandlerOptions configures the upgrade endpoint.
type HandlerOptions struct {
	// OriginPatterns lists extra origins allowed to connect; the request's
	// own host is always allowed.
	OriginPatterns []string
}

// HandleWebSocket returns an HTTP handler that upgrades connections to WebSocket
// and runs them as Hub clients. When the request carries an authenticated
// session, the connection may only authenticate as that session's user.
func HandleWebSocket(hub *Hub, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, auth.UserID(r.Context()))
		client.Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
