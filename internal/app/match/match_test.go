package match_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/app/match/mocks"
	"github.com/dkeye/Matchbox/internal/app/worker"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
	"github.com/dkeye/Matchbox/internal/store"
	"github.com/dkeye/Matchbox/internal/store/memory"
)

type inline struct{}

func (inline) Submit(task worker.Task) error {
	task(context.Background())
	return nil
}

type outcome struct {
	mu      sync.Mutex
	success []match.Handle
	failure []error
	ended   []match.Handle
}

func (o *outcome) Success(h match.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.success = append(o.success, h)
}

func (o *outcome) Failure(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failure = append(o.failure, err)
}

func (o *outcome) Ended(h match.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, h)
}

func newEnv(st store.Store) match.Env {
	return match.Env{Store: st, Pool: inline{}, Clock: clockwork.NewFakeClockAt(time.Unix(1700000000, 0))}
}

func header(profile domain.ProfileID) protocol.HandshakeHeader {
	return protocol.HandshakeHeader{Version: "1_0", ProfileID: profile, SessionKey: "key"}
}

func findReq(profile domain.ProfileID, app domain.Application, cb match.Callback) match.Request {
	return match.Request{
		Profile:   profile,
		Handshake: &protocol.Find{HandshakeHeader: header(profile), Configuration: app.Name},
		App:       app,
		Owner:     cb,
	}
}

func start(t *testing.T, alg match.Algorithm, req match.Request) match.Handle {
	t.Helper()
	h, err := alg.Initialize(req)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	h.StartMatching()
	return h
}

func mustResult(t *testing.T, h match.Handle) match.Result {
	t.Helper()
	res, err := h.GetResult()
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	return res
}

func TestFindJoinsEarliestOpenMatch(t *testing.T) {
	st := memory.New()
	alg := match.NewEarliest(newEnv(st))
	app := domain.Application{Name: "duel"}
	var o outcome

	a := mustResult(t, start(t, alg, findReq("a", app, &o)))
	b := mustResult(t, start(t, alg, findReq("b", app, &o)))

	if !a.Created || b.Created {
		t.Fatalf("created flags = %v, %v", a.Created, b.Created)
	}
	if a.MatchID != b.MatchID {
		t.Fatalf("b joined %s, want %s", b.MatchID, a.MatchID)
	}
	if len(b.Participants) != 2 || b.Participants[0] != "a" || b.Participants[1] != "b" {
		t.Fatalf("participants = %v", b.Participants)
	}
	if len(o.success) != 2 || len(o.failure) != 0 {
		t.Fatalf("success=%d failure=%v", len(o.success), o.failure)
	}
}

func TestFindClosesAtCapacity(t *testing.T) {
	st := memory.New()
	alg := match.NewEarliest(newEnv(st))
	app := domain.Application{Name: "duel", MaxParticipants: 2}
	var o outcome

	a := mustResult(t, start(t, alg, findReq("a", app, &o)))
	mustResult(t, start(t, alg, findReq("b", app, &o)))
	c := mustResult(t, start(t, alg, findReq("c", app, &o)))

	if c.MatchID == a.MatchID || !c.Created {
		t.Fatalf("third finder joined a full match")
	}
	_ = st.InTx(context.Background(), func(tx store.Tx) error {
		m, err := tx.GetMatch(a.MatchID)
		if err != nil {
			t.Fatalf("GetMatch: %v", err)
		}
		if m.Status != domain.MatchClosed {
			t.Errorf("status = %s, want CLOSED", m.Status)
		}
		return nil
	})
}

func TestCreateThenJoinCode(t *testing.T) {
	st := memory.New()
	alg := match.NewEarliest(newEnv(st))
	app := domain.Application{Name: "party"}
	var o outcome

	host := mustResult(t, start(t, alg, match.Request{
		Profile:   "host",
		Handshake: &protocol.Create{HandshakeHeader: header("host"), Configuration: "party"},
		App:       app,
		Owner:     &o,
	}))
	if host.JoinCode == "" {
		t.Fatal("create returned no join code")
	}

	guest := mustResult(t, start(t, alg, match.Request{
		Profile:   "guest",
		Handshake: &protocol.JoinCode{HandshakeHeader: header("guest"), Code: host.JoinCode},
		App:       app,
		Owner:     &o,
	}))
	if guest.MatchID != host.MatchID {
		t.Fatalf("guest joined %s, want %s", guest.MatchID, host.MatchID)
	}

	var miss outcome
	start(t, alg, match.Request{
		Profile:   "guest2",
		Handshake: &protocol.JoinCode{HandshakeHeader: header("guest2"), Code: "NOPE"},
		App:       app,
		Owner:     &miss,
	})
	if len(miss.failure) != 1 || protocol.CodeOf(miss.failure[0]) != protocol.CodeNotFound {
		t.Fatalf("unknown code failures = %v", miss.failure)
	}
}

func TestResumeRequiresParticipant(t *testing.T) {
	st := memory.New()
	alg := match.NewEarliest(newEnv(st))
	var o outcome
	first := mustResult(t, start(t, alg, findReq("a", domain.Application{Name: "duel"}, &o)))

	resume := func(profile domain.ProfileID, cb match.Callback) match.Handle {
		h, err := alg.Resume(match.Request{
			Profile:   profile,
			Handshake: &protocol.Join{HandshakeHeader: header(profile), MatchID: first.MatchID},
			Owner:     cb,
		})
		if err != nil {
			t.Fatalf("Resume: %v", err)
		}
		h.StartMatching()
		return h
	}

	var ok outcome
	if got := mustResult(t, resume("a", &ok)); got.MatchID != first.MatchID || got.Created {
		t.Fatalf("resume result = %+v", got)
	}

	var denied outcome
	h := resume("stranger", &denied)
	if len(denied.failure) != 1 {
		t.Fatalf("failures = %v", denied.failure)
	}
	if protocol.CodeOf(denied.failure[0]) != protocol.CodeNotFound || !errors.Is(denied.failure[0], store.ErrNotFound) {
		t.Fatalf("failure = %v", denied.failure[0])
	}
	if _, found := h.FindResult(); found {
		t.Fatal("failed handle has a result")
	}
}

func TestInitializeRejectsJoin(t *testing.T) {
	alg := match.NewEarliest(newEnv(memory.New()))
	_, err := alg.Initialize(match.Request{Handshake: &protocol.Join{MatchID: "m"}})
	if !errors.Is(err, match.ErrUnsupported) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelBeforeStartDoesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	cb := mocks.NewMockCallback(ctrl)
	st := memory.New()
	alg := match.NewEarliest(newEnv(st))

	h, err := alg.Initialize(findReq("a", domain.Application{Name: "duel"}, cb))
	if err != nil {
		t.Fatal(err)
	}
	h.Cancel()
	h.StartMatching()
	if st.Len() != 0 {
		t.Fatalf("store has %d matches after cancelled handle", st.Len())
	}
}

type gatedStore struct {
	store.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) InTx(ctx context.Context, fn func(store.Tx) error) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Store.InTx(ctx, fn)
}

func TestLateResultIsReleased(t *testing.T) {
	ctrl := gomock.NewController(t)
	cb := mocks.NewMockCallback(ctrl) // no Success, no Failure

	mem := memory.New()
	gate := &gatedStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	pool := worker.NewPool(1, 4)
	pool.Start(context.Background())
	alg := match.NewEarliest(match.Env{Store: gate, Pool: pool, Clock: clockwork.NewRealClock()})

	h := start(t, alg, findReq("a", domain.Application{Name: "duel"}, cb))
	<-gate.entered
	h.Cancel()
	close(gate.release)
	pool.Stop()

	if mem.Len() != 0 {
		t.Fatalf("late participant not released: %d matches remain", mem.Len())
	}
	h.LeaveMatch()
	if mem.Len() != 0 {
		t.Fatal("leave after cancel changed the store")
	}
}

func TestLeaveMatchIsIdempotent(t *testing.T) {
	st := memory.New()
	alg := match.NewEarliest(newEnv(st))
	app := domain.Application{Name: "duel"}
	var o outcome

	a := start(t, alg, findReq("a", app, &o))
	b := start(t, alg, findReq("b", app, &o))
	id := mustResult(t, a).MatchID

	a.LeaveMatch()
	a.LeaveMatch()
	_ = st.InTx(context.Background(), func(tx store.Tx) error {
		ps, err := tx.Participants(id)
		if err != nil || len(ps) != 1 || ps[0] != "b" {
			t.Errorf("participants = %v, %v", ps, err)
		}
		return nil
	})

	b.LeaveMatch()
	if st.Len() != 0 {
		t.Fatalf("empty match not deleted")
	}
	if err := a.OpenMatch(); !errors.Is(err, match.ErrNotMatched) {
		t.Fatalf("OpenMatch after leave = %v", err)
	}
	if len(o.failure) != 0 {
		t.Fatalf("failures = %v", o.failure)
	}
}

func TestCloseMatchHidesItFromFind(t *testing.T) {
	st := memory.New()
	alg := match.NewEarliest(newEnv(st))
	app := domain.Application{Name: "duel"}
	var o outcome

	a := start(t, alg, findReq("a", app, &o))
	if err := a.CloseMatch(); err != nil {
		t.Fatal(err)
	}
	b := mustResult(t, start(t, alg, findReq("b", app, &o)))
	if b.MatchID == mustResult(t, a).MatchID {
		t.Fatal("find joined a closed match")
	}

	if err := a.OpenMatch(); err != nil {
		t.Fatal(err)
	}
	c := mustResult(t, start(t, alg, findReq("c", app, &o)))
	if c.MatchID != mustResult(t, a).MatchID {
		t.Fatal("reopened match was not the earliest")
	}
}

func TestEndMatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	cb := mocks.NewMockCallback(ctrl)
	st := memory.New()
	alg := match.NewEarliest(newEnv(st))

	cb.EXPECT().Success(gomock.Any())
	h := start(t, alg, findReq("a", domain.Application{Name: "duel"}, cb))

	cb.EXPECT().Ended(h).Times(1)
	if err := h.EndMatch(); err != nil {
		t.Fatal(err)
	}
	if st.Len() != 0 {
		t.Fatal("ended match still stored")
	}
	if err := h.EndMatch(); !errors.Is(err, match.ErrNotMatched) {
		t.Fatalf("second EndMatch = %v", err)
	}
	h.LeaveMatch()
}

func TestRegistry(t *testing.T) {
	r := match.NewRegistry(match.EarliestName)
	r.Register(match.NewEarliest(newEnv(memory.New())))
	r.RegisterApplication(domain.Application{Name: "duel", MaxParticipants: 2})

	app := r.Application("duel")
	if app.Algorithm != match.EarliestName || app.MaxParticipants != 2 {
		t.Fatalf("app = %+v", app)
	}
	if _, err := r.Lookup(app.Algorithm); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Lookup("ranked"); !errors.Is(err, match.ErrUnknownAlgorithm) {
		t.Fatalf("Lookup(ranked) = %v", err)
	}
	if got := r.Application("unknown"); got.Name != "unknown" || got.MaxParticipants != 0 {
		t.Fatalf("unknown app = %+v", got)
	}
}

func TestApplicationTokensIgnoreCase(t *testing.T) {
	r := match.NewRegistry(match.EarliestName)
	// Configuration keys arrive lower-cased from the config loader.
	r.RegisterApplication(domain.Application{Name: "cfg-a", MaxParticipants: 4})
	r.RegisterApplication(domain.Application{Name: "Ranked-Duel", MaxParticipants: 2})

	for token, want := range map[string]int{"cfg-A": 4, "CFG-a": 4, "ranked-duel": 2, "RANKED-DUEL": 2} {
		if got := r.Application(token); got.MaxParticipants != want {
			t.Errorf("Application(%q) = %+v, want max %d", token, got, want)
		}
	}
	if a, b := r.Application("Lobby"), r.Application("lobby"); a.Name != b.Name {
		t.Fatalf("unknown tokens differ by case: %q vs %q", a.Name, b.Name)
	}
}
