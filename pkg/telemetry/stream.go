package telemetry

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// StreamHandler streams hub events to websocket clients as JSON. A
// "session" query parameter limits the stream to one session.
func StreamHandler(h *Hub, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if h == nil {
			http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
			return
		}
		sessionID := r.URL.Query().Get("session")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("event stream upgrade failed", slog.String("error", err.Error()))
			return
		}
		events, unsubscribe := h.Subscribe()
		defer unsubscribe()
		defer conn.Close()

		// The reader only notices the client going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(streamPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(streamPingPeriod)
		defer ping.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub closed"),
						time.Now().Add(streamWriteWait))
					return
				}
				if sessionID != "" && ev.SessionID != sessionID {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	}
}
