package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	httperrors "github.com/merdekaquiz/quiz-gateway/pkg/http/errors"
)

// wsUpgrader handles WebSocket upgrades for the session event stream.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: implement proper origin checking for production
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const wsWriteTimeout = 5 * time.Second

// Events streams session events (timer ticks, answers, submission,
// explanations) over a WebSocket until the session closes or the client
// disconnects.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	c, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "session not found")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		requestLogger(r).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	// Drain client frames so close handshakes are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, open := <-events:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
