package webserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zsprackett/agent-office/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxClientFrame = 4096
)

// Viewers are local tools; any origin may connect.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func isUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.logger.Debug("live: upgrade failed", "err", err)
		return
	}

	vw := &viewer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	states := events.InactiveStates()
	if s.snapshots != nil {
		states = s.snapshots.Snapshot(r.Context())
	}
	first, err := json.Marshal(events.NewAppStateMessage(states))
	if err != nil {
		s.logger.Error("live: marshal snapshot failed", "err", err)
		conn.Close()
		return
	}

	total := s.addViewer(vw, first)
	s.logger.Info("viewer connected", "viewer", vw.id, "remote", r.RemoteAddr, "total", total)

	go s.writeLoop(vw)
	s.readLoop(vw)

	if total, removed := s.removeViewer(vw); removed {
		s.logger.Info("viewer left", "viewer", vw.id, "total", total)
	}
}

// readLoop discards client frames; it exists to notice disconnects and pongs.
func (s *Server) readLoop(vw *viewer) {
	vw.conn.SetReadLimit(maxClientFrame)
	vw.conn.SetReadDeadline(time.Now().Add(pongWait))
	vw.conn.SetPongHandler(func(string) error {
		vw.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := vw.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop drains vw.send until it is closed or a write fails.
func (s *Server) writeLoop(vw *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		vw.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-vw.send:
			vw.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				vw.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := vw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("live: write failed", "viewer", vw.id, "err", err)
				s.removeViewer(vw)
				return
			}
		case <-ticker.C:
			vw.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := vw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.removeViewer(vw)
				return
			}
		}
	}
}
