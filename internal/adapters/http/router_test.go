package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/dkeye/Matchbox/internal/app"
	"github.com/dkeye/Matchbox/internal/app/handshake"
	"github.com/dkeye/Matchbox/internal/app/heartbeat"
	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/app/orch"
	"github.com/dkeye/Matchbox/internal/app/relay"
	"github.com/dkeye/Matchbox/internal/app/worker"
	"github.com/dkeye/Matchbox/internal/config"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
	"github.com/dkeye/Matchbox/internal/store"
	"github.com/dkeye/Matchbox/internal/store/memory"
)

type testServer struct {
	srv    *httptest.Server
	store  store.Store
	orch   *orch.Orchestrator
	cancel context.CancelFunc
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(2, 64)
	pool.Start(context.Background())

	st := memory.New()
	clk := clockwork.NewRealClock()
	matches := match.NewRegistry(match.EarliestName)
	matches.Register(match.NewEarliest(match.Env{Store: st, Pool: pool, Clock: clk}))

	o := &orch.Orchestrator{
		Handshakes:       handshake.NewRegistry(handshake.NewV1(matches)),
		Registry:         app.NewRegistry(),
		Relays:           relay.NewManager(),
		Pinger:           heartbeat.NewPinger(clk, time.Hour, time.Hour),
		Pool:             pool,
		Policy:           app.SimplePolicy{},
		Limiter:          app.NewRateLimiter(clk, 0, time.Second),
		Clock:            clk,
		HandshakeTimeout: time.Minute,
	}
	cfg := &config.Config{Mode: "release", Secret: "test-secret", SendBuffer: 16, ReadLimit: 1 << 16}

	srv := httptest.NewServer(SetupRouter(ctx, cfg, o, st))
	t.Cleanup(func() {
		o.Shutdown()
		srv.Close()
		cancel()
		pool.Stop()
	})
	return &testServer{srv: srv, store: st, orch: o, cancel: cancel}
}

func newServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	ts := startServer(t)
	return ts.srv, ts.store
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if len(resp.Cookies()) == 0 {
		t.Fatal("no session cookie set on upgrade")
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func write(t *testing.T, ws *websocket.Conn, s string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/api/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMatchNotFound(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/api/matches/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSignalOverWebsocket(t *testing.T) {
	srv, _ := newServer(t)
	a, b := dial(t, srv), dial(t, srv)

	write(t, a, `{"type":"find","version":"1_0","sessionKey":"k","profileId":"a","configuration":"duel"}`)
	if m := read(t, a); m["type"] != "matched" {
		t.Fatalf("a got %v", m)
	}
	write(t, b, `{"type":"find","version":"1_0","sessionKey":"k","profileId":"b","configuration":"duel"}`)
	mb := read(t, b)
	if mb["type"] != "matched" {
		t.Fatalf("b got %v", mb)
	}

	write(t, b, `{"type":"sdpOffer","to":"a","description":{"type":"offer","sdp":"v=0"}}`)
	got := read(t, a)
	if got["type"] != "sdpOffer" || got["from"] != "b" {
		t.Fatalf("a got %v", got)
	}

	resp, err := http.Get(srv.URL + "/api/matches/" + mb["matchId"].(string))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var m domain.Match
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if len(m.Participants) != 2 {
		t.Fatalf("participants = %v", m.Participants)
	}
}

func TestInvalidHandshakeClosesWithPolicyViolation(t *testing.T) {
	srv, _ := newServer(t)
	ws := dial(t, srv)

	write(t, ws, `{"type":"find","version":"9_9"}`)
	if m := read(t, ws); m["code"] != string(protocol.CodeInvalidMessage) {
		t.Fatalf("got %v", m)
	}
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("read err = %v", err)
	}
}

func TestShutdownAfterCancelSendsGoingAway(t *testing.T) {
	ts := startServer(t)
	ws := dial(t, ts.srv)
	write(t, ws, `{"type":"find","version":"1_0","sessionKey":"k","profileId":"a","configuration":"duel"}`)
	if m := read(t, ws); m["type"] != "matched" {
		t.Fatalf("got %v", m)
	}

	// A signal cancels the root context before connections are shut down.
	ts.cancel()
	time.Sleep(50 * time.Millisecond)
	ts.orch.Shutdown()

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("read err = %v, want going-away close", err)
	}
}
