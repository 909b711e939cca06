package orch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"

	"github.com/dkeye/Matchbox/internal/app"
	"github.com/dkeye/Matchbox/internal/app/handshake"
	"github.com/dkeye/Matchbox/internal/app/heartbeat"
	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/app/relay"
	"github.com/dkeye/Matchbox/internal/app/worker"
	"github.com/dkeye/Matchbox/internal/core"
	"github.com/dkeye/Matchbox/internal/protocol"
	"github.com/dkeye/Matchbox/internal/store/memory"
)

const (
	pingInterval     = 10 * time.Second
	pongWait         = 5 * time.Second
	handshakeTimeout = 30 * time.Second
)

type inline struct{}

func (inline) Submit(task worker.Task) error {
	task(context.Background())
	return nil
}

// held queues tasks until run is called.
type held struct {
	mu    sync.Mutex
	tasks []worker.Task
}

func (q *held) Submit(task worker.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *held) run() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		task(context.Background())
	}
}

var (
	errClosed = errors.New("transport closed")
	errFull   = errors.New("send buffer full")
)

type fakeTransport struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
	closes int
	reason core.CloseReason
	text   string
}

func (f *fakeTransport) TrySend(frame core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errClosed
	}
	if f.full {
		return errFull
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeTransport) Ping() error { return nil }

func (f *fakeTransport) Close(reason core.CloseReason, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closed {
		return
	}
	f.closed = true
	f.reason = reason
	f.text = text
}

func (f *fakeTransport) RemoteAddr() string { return "pipe" }

func (f *fakeTransport) setFull(full bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full = full
}

type frame map[string]any

func (f frame) kind() string { s, _ := f["type"].(string); return s }

func (f *fakeTransport) messages(t *testing.T) []frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var m frame
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("bad frame %s: %v", raw, err)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeTransport) kinds(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range f.messages(t) {
		out = append(out, m.kind())
	}
	return out
}

// last returns the most recent frame of kind, failing when there is none.
func (f *fakeTransport) last(t *testing.T, kind string) frame {
	t.Helper()
	msgs := f.messages(t)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].kind() == kind {
			return msgs[i]
		}
	}
	t.Fatalf("no %s frame in %v", kind, f.kinds(t))
	return nil
}

func (f *fakeTransport) count(t *testing.T, kind string) int {
	t.Helper()
	n := 0
	for _, k := range f.kinds(t) {
		if k == kind {
			n++
		}
	}
	return n
}

type harness struct {
	o     *Orchestrator
	clk   *clockwork.FakeClock
	store *memory.Store
}

func newHarness(t *testing.T, alg ...match.Algorithm) *harness {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	st := memory.New()

	matches := match.NewRegistry(match.EarliestName)
	if len(alg) == 0 {
		matches.Register(match.NewEarliest(match.Env{Store: st, Pool: inline{}, Clock: clk}))
	}
	for _, a := range alg {
		matches.Register(a)
	}

	return &harness{
		clk:   clk,
		store: st,
		o: &Orchestrator{
			Handshakes:       handshake.NewRegistry(handshake.NewV1(matches)),
			Registry:         app.NewRegistry(),
			Relays:           relay.NewManager(),
			Pinger:           heartbeat.NewPinger(clk, pingInterval, pongWait),
			Pool:             inline{},
			Policy:           app.SimplePolicy{},
			Limiter:          app.NewRateLimiter(clk, 0, time.Second),
			Clock:            clk,
			HandshakeTimeout: handshakeTimeout,
			HostOnly:         map[protocol.Kind]bool{protocol.KindEnd: true},
		},
	}
}

func (h *harness) connect() (*Connection, *fakeTransport) {
	t := &fakeTransport{}
	return h.o.Accept(t, ""), t
}

func phaseOf(c *Connection) Phase { return c.State().Phase }

func mustPhase(t *testing.T, c *Connection, want Phase) {
	t.Helper()
	if got := phaseOf(c); got != want {
		t.Fatalf("phase = %s, want %s", got, want)
	}
}

// waitPhase waits for timer-driven transitions, which the fake clock
// fires on their own goroutines.
func waitPhase(t *testing.T, c *Connection, want Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for phaseOf(c) != want {
		if time.Now().After(deadline) {
			t.Fatalf("phase = %s, want %s", phaseOf(c), want)
		}
		time.Sleep(time.Millisecond)
	}
}

// waitClosed waits until cleanup has closed the transport.
func waitClosed(t *testing.T, tr *fakeTransport) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		tr.mu.Lock()
		closed := tr.closed
		tr.mu.Unlock()
		if closed {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("transport not closed")
		}
		time.Sleep(time.Millisecond)
	}
}

func errorCode(t *testing.T, tr *fakeTransport) string {
	t.Helper()
	code, _ := tr.last(t, "error")["code"].(string)
	return code
}
