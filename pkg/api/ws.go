package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kurtheiz/agistme/pkg/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API only listens locally and the front end may be served from a
	// dev server on another port.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// initMessage is the first frame of every feed connection.
type initMessage struct {
	Type      string `json:"type"`
	Listeners int    `json:"listeners"`
}

// HandleMatchFeed streams realtime events (saved-search matches and
// heartbeats) to a WebSocket client until it disconnects.
func (s *Server) HandleMatchFeed(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "unavailable", "Match feed is not configured")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)
	log := logger.With("listener", id)
	log.Debugf("feed connected from %s", r.RemoteAddr)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(initMessage{Type: "init", Listeners: s.hub.Size()}); err != nil {
		log.Debugf("writing init: %v", err)
		return
	}

	// The client sends nothing but control frames; reading drives pong
	// handling and notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Debugf("feed disconnected")
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, e); err != nil {
				log.Debugf("writing event: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e realtime.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}
