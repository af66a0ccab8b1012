package webserver_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/agent-office/internal/events"
	"github.com/zsprackett/agent-office/internal/webserver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSnapshot events.AppStates

func (s staticSnapshot) Snapshot(context.Context) events.AppStates {
	return events.AppStates(s).Clone()
}

func newServer(t *testing.T) (*webserver.Server, *httptest.Server) {
	t.Helper()
	snap := staticSnapshot{"cursor": {Active: true, CPU: 12.5}, "notion": {}}
	srv := webserver.New(webserver.Config{Host: "127.0.0.1", Port: 0}, snap, discardLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func waitForCount(t *testing.T, srv *webserver.Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("viewer count: got %d want %d", srv.Count(), want)
}

func post(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/event", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEventEndpoint(t *testing.T) {
	srv := webserver.New(webserver.Config{}, nil, discardLogger())
	req := httptest.NewRequest("POST", "/event", strings.NewReader(`{"hookType":"PreToolUse","tool_name":"Bash"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body: got %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("content-type: got %q", ct)
	}
}

func TestEventEndpoint_DroppedEventStillAcknowledged(t *testing.T) {
	srv := webserver.New(webserver.Config{}, nil, discardLogger())
	for _, body := range []string{`{"hookType":"Stop"}`, `{"hookType":"PreToolUse"}`, `[]`, `null`} {
		req := httptest.NewRequest("POST", "/event", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != 200 || w.Body.String() != "ok" {
			t.Errorf("%s: got %d %q", body, w.Code, w.Body.String())
		}
	}
}

func TestEventEndpoint_BadJSON(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	srv := webserver.New(webserver.Config{}, nil, logger)

	for _, body := range []string{`{"hookType":`, ``, `not json`} {
		req := httptest.NewRequest("POST", "/event", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != 400 {
			t.Errorf("%q: expected 400, got %d", body, w.Code)
		}
	}
	if !strings.Contains(buf.String(), "bad json") {
		t.Errorf("expected warn log, got %q", buf.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := webserver.New(webserver.Config{}, nil, discardLogger())
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["ok"] != true {
		t.Errorf("ok: got %v", resp["ok"])
	}
	if resp["clients"] != float64(0) {
		t.Errorf("clients: got %v", resp["clients"])
	}
	if up, ok := resp["uptime"].(float64); !ok || up < 0 {
		t.Errorf("uptime: got %v", resp["uptime"])
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := webserver.New(webserver.Config{}, nil, discardLogger())
	req := httptest.NewRequest("OPTIONS", "/event", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 204 {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin: got %q", got)
	}
}

func TestUnknownPath(t *testing.T) {
	srv := webserver.New(webserver.Config{}, nil, discardLogger())
	for _, target := range []string{"/nope", "/", "/ws", "/event"} {
		req := httptest.NewRequest("GET", target, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != 404 {
			t.Errorf("GET %s: expected 404, got %d", target, w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("GET %s: missing CORS header", target)
		}
	}
}

func TestFirstMessageIsSnapshot(t *testing.T) {
	_, ts := newServer(t)
	for _, path := range []string{"/", "/ws"} {
		conn := dial(t, ts, path)
		msg := readJSON(t, conn)
		if msg["type"] != events.TypeAppState {
			t.Fatalf("%s: first message type %v", path, msg["type"])
		}
		states, _ := msg["states"].(map[string]any)
		cursor, _ := states["cursor"].(map[string]any)
		if cursor["active"] != true || cursor["cpu"] != 12.5 {
			t.Errorf("%s: unexpected snapshot %v", path, msg)
		}
	}
}

func TestSnapshotWithoutSource(t *testing.T) {
	srv := webserver.New(webserver.Config{}, nil, discardLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts, "/ws")
	msg := readJSON(t, conn)
	states, _ := msg["states"].(map[string]any)
	if len(states) != len(events.WatchedApps) {
		t.Errorf("expected full inactive snapshot, got %v", msg)
	}
}

func TestEndToEndHookToViewer(t *testing.T) {
	srv, ts := newServer(t)
	conn := dial(t, ts, "/")
	readJSON(t, conn) // snapshot
	waitForCount(t, srv, 1)

	resp := post(t, ts, `{"hookType":"PreToolUse","tool_name":"Bash","tool_input":{"command":"ls -la"}}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	msg := readJSON(t, conn)
	if msg["type"] != "PreToolUse" || msg["tool"] != "Bash" || msg["role"] != "bash" || msg["detail"] != "ls -la" {
		t.Errorf("unexpected event: %v", msg)
	}
}

func TestDroppedEventNotBroadcast(t *testing.T) {
	srv, ts := newServer(t)
	conn := dial(t, ts, "/")
	readJSON(t, conn)
	waitForCount(t, srv, 1)

	post(t, ts, `{"hookType":"Notification"}`)
	post(t, ts, `{"hookType":"PostToolUse"}`)

	msg := readJSON(t, conn)
	if msg["type"] != "PostToolUse" {
		t.Errorf("expected the dropped event to be skipped, got %v", msg)
	}
}

func TestBroadcastReachesEveryConnectedViewer(t *testing.T) {
	srv, ts := newServer(t)
	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, ts, "/ws")
		readJSON(t, conns[i])
	}
	waitForCount(t, srv, 3)

	conns[2].Close()
	waitForCount(t, srv, 2)

	srv.Broadcast(events.AgentEvent{Kind: events.ToolStarted, Tool: "Grep", Role: events.RoleSearcher, Label: "Grep"})
	srv.Broadcast(events.AgentEvent{Kind: events.ToolFinished, Role: events.RoleClaude})

	for i := 0; i < 2; i++ {
		first := readJSON(t, conns[i])
		second := readJSON(t, conns[i])
		if first["tool"] != "Grep" || second["type"] != "PostToolUse" {
			t.Errorf("viewer %d: got %v then %v", i, first, second)
		}
	}
}

func TestHealthCountsViewers(t *testing.T) {
	srv, ts := newServer(t)
	c1 := dial(t, ts, "/ws")
	dial(t, ts, "/ws")
	waitForCount(t, srv, 2)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if body["clients"] != float64(2) {
		t.Errorf("clients: got %v", body["clients"])
	}

	c1.Close()
	waitForCount(t, srv, 1)
}

func TestBroadcastWithoutViewers(t *testing.T) {
	srv := webserver.New(webserver.Config{}, nil, discardLogger())
	// Must not panic or block.
	srv.Broadcast(events.NewAppStateMessage(events.InactiveStates()))
	srv.Broadcast(make(chan int)) // unmarshalable values are logged and dropped
}

func TestServeListenerShutdown(t *testing.T) {
	srv := webserver.New(webserver.Config{}, nil, discardLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForCount(t, srv, 1)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeListener: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeListener did not return after cancel")
	}
	if srv.Count() != 0 {
		t.Errorf("expected viewers closed on shutdown, got %d", srv.Count())
	}
}
