package match

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/app/worker"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
	"github.com/dkeye/Matchbox/internal/store"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseMatching
	PhaseMatched
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseMatching:
		return "matching"
	case PhaseMatched:
		return "matched"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Env is what algorithms need to run their handles.
type Env struct {
	Store store.Store
	Pool  worker.Submitter
	Clock clockwork.Clock
}

// Finder performs the algorithm-specific search inside one transaction.
type Finder func(tx store.Tx, req Request) (Result, error)

// record is an immutable snapshot; transitions swap the pointer.
type record struct {
	phase  Phase
	result *Result
}

// Cancelable is the Handle shared by all algorithms. Its phase only moves
// forward and every transition is a compare-and-swap, so a result racing a
// cancel is resolved exactly one way.
type Cancelable struct {
	req  Request
	find Finder
	env  Env

	state    atomic.Pointer[record]
	released atomic.Bool
}

func NewCancelable(req Request, find Finder, env Env) *Cancelable {
	c := &Cancelable{req: req, find: find, env: env}
	c.state.Store(&record{phase: PhaseIdle})
	return c
}

func (c *Cancelable) Request() Request { return c.req }

func (c *Cancelable) Phase() Phase { return c.state.Load().phase }

func (c *Cancelable) StartMatching() {
	idle := c.state.Load()
	if idle.phase != PhaseIdle {
		return
	}
	matching := &record{phase: PhaseMatching}
	if !c.state.CompareAndSwap(idle, matching) {
		return
	}
	err := c.env.Pool.Submit(func(ctx context.Context) { c.run(ctx, matching) })
	if err != nil {
		if c.state.CompareAndSwap(matching, &record{phase: PhaseTerminated}) {
			c.req.Owner.Failure(protocol.Wrap(protocol.CodeMatchmakingFailed, err, "matchmaking unavailable"))
		}
	}
}

func (c *Cancelable) run(ctx context.Context, matching *record) {
	var res Result
	err := c.env.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		res, err = c.find(tx, c.req)
		return err
	})
	if err != nil {
		if c.state.CompareAndSwap(matching, &record{phase: PhaseTerminated}) {
			c.req.Owner.Failure(matchmakingError(err))
		}
		return
	}
	if !c.state.CompareAndSwap(matching, &record{phase: PhaseMatched, result: &res}) {
		// Cancelled while the transaction ran: undo the participation.
		log.Debug().Str("module", "match").Str("match", string(res.MatchID)).Str("profile", string(res.Profile)).Msg("late result released")
		c.release(ctx, res)
		return
	}
	c.req.Owner.Success(c)
}

func (c *Cancelable) Cancel() { c.terminate() }

func (c *Cancelable) LeaveMatch() { c.terminate() }

func (c *Cancelable) terminate() {
	for {
		old := c.state.Load()
		switch old.phase {
		case PhaseTerminated:
			return
		case PhaseIdle, PhaseMatching:
			if c.state.CompareAndSwap(old, &record{phase: PhaseTerminated}) {
				return
			}
		case PhaseMatched:
			if c.state.CompareAndSwap(old, &record{phase: PhaseTerminated, result: old.result}) {
				res := *old.result
				c.submit(func(ctx context.Context) { c.release(ctx, res) })
				return
			}
		}
	}
}

// release removes the participant at most once per handle.
func (c *Cancelable) release(ctx context.Context, res Result) {
	if !c.released.CompareAndSwap(false, true) {
		return
	}
	err := c.env.Store.InTx(ctx, func(tx store.Tx) error {
		removed, remaining, err := tx.RemoveParticipant(res.MatchID, res.Profile)
		if err != nil {
			return err
		}
		log.Debug().Str("module", "match").Str("match", string(res.MatchID)).Str("profile", string(res.Profile)).
			Bool("removed", removed).Int("remaining", remaining).Msg("participant left")
		return nil
	})
	if err != nil {
		log.Error().Str("module", "match").Err(err).Str("match", string(res.MatchID)).Msg("leave failed")
		c.req.Owner.Failure(matchmakingError(err))
	}
}

func (c *Cancelable) OpenMatch() error { return c.setStatus(domain.MatchOpen) }

func (c *Cancelable) CloseMatch() error { return c.setStatus(domain.MatchClosed) }

func (c *Cancelable) setStatus(status domain.MatchStatus) error {
	res, ok := c.matched()
	if !ok {
		return ErrNotMatched
	}
	c.submit(func(ctx context.Context) {
		err := c.env.Store.InTx(ctx, func(tx store.Tx) error {
			m, err := tx.GetMatch(res.MatchID)
			if err != nil {
				return err
			}
			if m.Status == domain.MatchEnded {
				return protocol.ErrMatchEnded
			}
			return tx.SetStatus(res.MatchID, status)
		})
		if err != nil {
			c.req.Owner.Failure(matchmakingError(err))
		}
	})
	return nil
}

// EndMatch deletes the match for every participant. The handle terminates
// without a separate leave.
func (c *Cancelable) EndMatch() error {
	old := c.state.Load()
	if old.phase != PhaseMatched {
		return ErrNotMatched
	}
	if !c.state.CompareAndSwap(old, &record{phase: PhaseTerminated, result: old.result}) {
		return ErrNotMatched
	}
	c.released.Store(true)
	id := old.result.MatchID
	c.submit(func(ctx context.Context) {
		err := c.env.Store.InTx(ctx, func(tx store.Tx) error {
			if err := tx.SetStatus(id, domain.MatchEnded); err != nil {
				return err
			}
			return tx.DeleteMatch(id)
		})
		if err != nil {
			c.req.Owner.Failure(matchmakingError(err))
			return
		}
		c.req.Owner.Ended(c)
	})
	return nil
}

func (c *Cancelable) FindResult() (Result, bool) {
	r := c.state.Load().result
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

func (c *Cancelable) GetResult() (Result, error) {
	r, ok := c.FindResult()
	if !ok {
		return Result{}, ErrNoResult
	}
	return r, nil
}

func (c *Cancelable) matched() (Result, bool) {
	r := c.state.Load()
	if r.phase != PhaseMatched {
		return Result{}, false
	}
	return *r.result, true
}

// submit falls back to a goroutine so lifecycle work is never lost to a
// full queue.
func (c *Cancelable) submit(task worker.Task) {
	if err := c.env.Pool.Submit(task); err != nil {
		log.Warn().Str("module", "match").Err(err).Msg("pool rejected lifecycle task, running detached")
		go task(context.Background())
	}
}

// matchmakingError keeps client-facing protocol errors and reports
// everything else as a generic matchmaking failure.
func matchmakingError(err error) error {
	var pe *protocol.Error
	if errors.As(err, &pe) {
		return pe
	}
	return protocol.Wrap(protocol.CodeMatchmakingFailed, err, "matchmaking failed")
}
