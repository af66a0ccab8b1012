package webserver

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

// sendBuffer is the per-viewer queue depth. A viewer that falls this far
// behind is evicted.
const sendBuffer = 64

// viewer is one connected client. Owned by Server.viewers; closed and send
// are guarded by Server.mu.
type viewer struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

// Broadcast implements events.Broadcaster. Delivery is best effort: a viewer
// whose queue is full or already closed is evicted, never retried.
func (s *Server) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("broadcast: marshal failed", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for vw := range s.viewers {
		if !vw.enqueue(data) {
			s.dropLocked(vw)
			s.logger.Debug("viewer evicted", "viewer", vw.id, "total", len(s.viewers))
		}
	}
}

// Count returns the number of connected viewers.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// addViewer registers vw and queues first as its first frame in one step, so
// no broadcast can overtake the snapshot.
func (s *Server) addViewer(vw *viewer, first []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[vw] = struct{}{}
	vw.enqueue(first)
	return len(s.viewers)
}

// removeViewer deregisters vw. Safe to call more than once.
func (s *Server) removeViewer(vw *viewer) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viewers[vw]; !ok {
		return len(s.viewers), false
	}
	s.dropLocked(vw)
	return len(s.viewers), true
}

func (s *Server) dropLocked(vw *viewer) {
	delete(s.viewers, vw)
	if !vw.closed {
		vw.closed = true
		close(vw.send)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for vw := range s.viewers {
		s.dropLocked(vw)
	}
}

func (vw *viewer) enqueue(data []byte) bool {
	if vw.closed {
		return false
	}
	select {
	case vw.send <- data:
		return true
	default:
		return false
	}
}
