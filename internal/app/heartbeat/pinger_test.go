package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dkeye/Matchbox/internal/protocol"
)

type fakeTarget struct {
	id      string
	pingErr error
	// block, when set, holds Ping until it is closed.
	block chan struct{}

	mu     sync.Mutex
	pings  int
	causes []error
	pinged chan struct{}
	ended  chan struct{}
}

func newTarget(id string) *fakeTarget {
	return &fakeTarget{id: id, pinged: make(chan struct{}, 16), ended: make(chan struct{}, 16)}
}

func (f *fakeTarget) ID() string { return f.id }

func (f *fakeTarget) Ping() error {
	f.mu.Lock()
	f.pings++
	f.mu.Unlock()
	f.pinged <- struct{}{}
	if f.block != nil {
		<-f.block
	}
	return f.pingErr
}

func (f *fakeTarget) Terminate(cause error) {
	f.mu.Lock()
	f.causes = append(f.causes, cause)
	f.mu.Unlock()
	f.ended <- struct{}{}
}

func (f *fakeTarget) terminated() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.causes...)
}

func (f *fakeTarget) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

const (
	interval = 10 * time.Second
	deadline = 5 * time.Second
)

func TestMissedDeadlineTerminates(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
	p := NewPinger(clk, interval, deadline)
	slow := newTarget("slow")
	p.Add(slow)

	p.Tick()
	p.inflight.Wait()
	clk.Advance(deadline - time.Second)
	if len(slow.terminated()) != 0 {
		t.Fatal("terminated before deadline")
	}
	clk.Advance(time.Second)
	waitFor(t, slow.ended, "termination")

	causes := slow.terminated()
	if len(causes) != 1 || protocol.CodeOf(causes[0]) != protocol.CodeTimeout {
		t.Fatalf("causes = %v", causes)
	}
	if p.Len() != 0 {
		t.Fatal("expired peer still supervised")
	}
}

func TestPongResetsCycle(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
	p := NewPinger(clk, interval, deadline)
	ok := newTarget("ok")
	p.Add(ok)

	for range 3 {
		p.Tick()
		p.inflight.Wait()
		clk.Advance(time.Second)
		p.Pong("ok")
		clk.Advance(interval)
	}
	if len(ok.terminated()) != 0 {
		t.Fatalf("answered peer terminated: %v", ok.terminated())
	}
	if n := ok.pingCount(); n != 3 {
		t.Fatalf("pings = %d, want 3", n)
	}
}

func TestOutstandingPingNotRepeated(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
	p := NewPinger(clk, interval, time.Minute)
	tg := newTarget("t")
	p.Add(tg)

	p.Tick()
	p.Tick()
	p.inflight.Wait()
	if n := tg.pingCount(); n != 1 {
		t.Fatalf("pings = %d, want 1", n)
	}
}

func TestPingErrorTerminates(t *testing.T) {
	p := NewPinger(clockwork.NewFakeClockAt(time.Unix(0, 0)), interval, deadline)
	broken := newTarget("broken")
	broken.pingErr = errors.New("write: broken pipe")
	healthy := newTarget("healthy")
	p.Add(broken)
	p.Add(healthy)

	p.Tick()
	p.inflight.Wait()
	if causes := broken.terminated(); len(causes) != 1 || !errors.Is(causes[0], broken.pingErr) {
		t.Fatalf("causes = %v", causes)
	}
	if healthy.pingCount() != 1 || len(healthy.terminated()) != 0 {
		t.Fatal("healthy peer affected by broken one")
	}
}

func TestStalledPingDoesNotDelayOthers(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
	p := NewPinger(clk, interval, deadline)
	stalled := newTarget("stalled")
	stalled.block = make(chan struct{})
	fast := newTarget("fast")
	p.Add(stalled)
	p.Add(fast)

	returned := make(chan struct{})
	go func() {
		p.Tick()
		close(returned)
	}()
	waitFor(t, returned, "Tick to return")
	waitFor(t, fast.pinged, "fast peer ping")
	waitFor(t, stalled.pinged, "stalled peer ping")

	// The fast peer answers; the stalled one is still inside Ping when its
	// deadline passes.
	p.Pong("fast")
	clk.Advance(deadline)
	waitFor(t, stalled.ended, "stalled peer termination")
	if causes := stalled.terminated(); len(causes) != 1 || protocol.CodeOf(causes[0]) != protocol.CodeTimeout {
		t.Fatalf("stalled causes = %v", causes)
	}
	if len(fast.terminated()) != 0 {
		t.Fatalf("fast peer terminated: %v", fast.terminated())
	}

	close(stalled.block)
	p.inflight.Wait()
}

func TestRemoveStopsSupervision(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
	p := NewPinger(clk, interval, deadline)
	tg := newTarget("t")
	p.Add(tg)

	p.Tick()
	p.inflight.Wait()
	p.Remove("t")
	clk.Advance(deadline)
	p.Tick()
	p.inflight.Wait()
	if tg.pingCount() != 1 || len(tg.terminated()) != 0 {
		t.Fatalf("pings=%d causes=%v", tg.pingCount(), tg.terminated())
	}
}

func TestRunTicks(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
	p := NewPinger(clk, interval, deadline)
	tg := newTarget("t")
	p.Add(tg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	if err := clk.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clk.Advance(interval)
	waitFor(t, tg.pinged, "ping after one interval")
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run = %v", err)
	}
}
