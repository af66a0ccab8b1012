package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zsprackett/agent-office/internal/events"
	"github.com/zsprackett/agent-office/internal/hook"
)

// maxEventBody caps the size of a hook payload.
const maxEventBody = 1 << 20

type Config struct {
	Port int
	Host string
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// SnapshotSource supplies the full app-state snapshot sent to new viewers.
type SnapshotSource interface {
	Snapshot(ctx context.Context) events.AppStates
}

// Server is the relay hub: it accepts hook notifications over HTTP and fans
// every canonical event out to the connected viewers.
type Server struct {
	cfg       Config
	snapshots SnapshotSource
	logger    *slog.Logger
	started   time.Time
	now       func() time.Time

	mu      sync.Mutex
	viewers map[*viewer]struct{}
}

func New(cfg Config, snapshots SnapshotSource, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		snapshots: snapshots,
		logger:    logger,
		started:   time.Now(),
		now:       time.Now,
		viewers:   make(map[*viewer]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /event", s.handleEvent)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	return corsMiddleware(mux)
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then closes every viewer.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.Info("relay listening",
		"ws", "ws://"+ln.Addr().String(),
		"event", "http://"+ln.Addr().String()+"/event",
		"health", "http://"+ln.Addr().String()+"/health",
	)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		s.logger.Warn("hook: read body failed", "err", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		s.logger.Warn("hook: bad json", "err", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if e, ok := hook.Normalize(raw, s.now()); ok {
		s.Broadcast(e)
		s.logger.Info("hook",
			"type", e.Kind.Type(),
			"tool", e.Tool,
			"role", string(e.Role),
			"detail", e.Detail,
		)
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

type healthResponse struct {
	OK      bool    `json:"ok"`
	Clients int     `json:"clients"`
	Uptime  float64 `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		OK:      true,
		Clients: s.Count(),
		Uptime:  s.now().Sub(s.started).Seconds(),
	})
}

// handleRoot serves the live channel on "/" and "/ws" for WebSocket upgrades;
// any other request, including a plain GET on those paths, is unknown.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && (r.URL.Path == "/" || r.URL.Path == "/ws") && isUpgrade(r) {
		s.handleLive(w, r)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}
