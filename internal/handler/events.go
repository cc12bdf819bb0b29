package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fleet-command-server/internal/hub"
)

// EventsHandler streams command lifecycle events to internal observers
// over a websocket. The route is trust-gated; the credential rides in the
// query string because websocket clients cannot set headers.
type EventsHandler struct {
	Hub *hub.Hub
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *EventsHandler) Serve(c *gin.Context) {
	topic := c.DefaultQuery("topic", "commands")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sub := &hub.Subscriber{Topic: topic, Writer: &wsWriter{conn: ws}}
	h.Hub.Subscribe(sub)
	defer func() {
		h.Hub.Unsubscribe(sub)
		_ = ws.Close()
	}()

	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadLimit(4096)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	// Observers only listen; drain until the peer goes away.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
