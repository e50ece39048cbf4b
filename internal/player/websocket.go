package player

import (
	"log/slog"
	"net/http"
	"time"

	"gesture-sequencer/internal/sequencer"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS handles GET /avatars/{avatar_id}/stream: it upgrades to a
// websocket and streams the avatar's commands as JSON text frames until the
// client goes away.
func (h *Hub) ServeWS(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		avatar := sequencer.AvatarID(chi.URLParam(r, "avatar_id"))
		if avatar == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		defer conn.Close()

		ch := h.Subscribe(avatar)
		defer h.Unsubscribe(avatar, ch)
		log.Info("render client connected", slog.String("avatar_id", string(avatar)))

		// Reader: only pongs and close frames are expected.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				log.Info("render client disconnected", slog.String("avatar_id", string(avatar)))
				return
			case <-r.Context().Done():
				return
			case cmd, ok := <-ch:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(cmd); err != nil {
					log.Debug("websocket write failed", slog.String("avatar_id", string(avatar)), slog.String("error", err.Error()))
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
