// pattern: Imperative Shell

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// handleWebSocket streams event envelopes as JSON text messages.
// ?workspace=<id> limits the stream to one workspace. Client messages are
// not expected; the stream ends when the client closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("workspace")

	// Restrict to localhost origins to prevent cross-origin WebSocket attacks.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"127.0.0.1:*", "localhost:*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(1 << 10)

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	// CloseRead discards client frames and cancels ctx once the peer closes.
	ctx := conn.CloseRead(context.Background())
	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr, "workspace", filter)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
			return
		case env, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if filter != "" && env.WorkspaceID() != filter {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, env)
			cancel()
			if err != nil {
				s.logger.Warn("websocket write failed", "error", err)
				return
			}
		}
	}
}
