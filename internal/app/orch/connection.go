package orch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/app/worker"
	"github.com/dkeye/Matchbox/internal/core"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

// Connection is the protocol state machine of one client. OnMessage runs
// on the transport's read goroutine; Success, Failure and Ended run on
// workers. Neither blocks on persistence.
type Connection struct {
	id        string
	o         *Orchestrator
	transport core.Transport
	fallback  domain.ProfileID
	serial    *worker.Serial
	logger    zerolog.Logger

	state atomic.Pointer[State]

	timerMu sync.Mutex
	timer   clockwork.Timer
}

func newConnection(o *Orchestrator, id string, t core.Transport, fallback domain.ProfileID) *Connection {
	c := &Connection{
		id:        id,
		o:         o,
		transport: t,
		fallback:  fallback,
		logger: log.With().Str("module", "orch").Str("conn", id).
			Str("remote", t.RemoteAddr()).Logger(),
	}
	c.serial = worker.NewSerial(o.Pool, func(dropped int, err error) {
		c.logger.Warn().Err(err).Int("dropped", dropped).Msg("queued tasks dropped")
		c.rejected(err)
	})
	c.state.Store(&State{Phase: PhaseReady})
	return c
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) State() *State { return c.state.Load() }

// Start registers the connection with the heartbeat supervisor and arms
// the handshake timeout.
func (c *Connection) Start() {
	c.o.Pinger.Add(c)
	if c.o.HandshakeTimeout > 0 {
		c.timerMu.Lock()
		c.timer = c.o.Clock.AfterFunc(c.o.HandshakeTimeout, func() {
			c.terminateIf(handshakePending, protocol.ErrHandshakeTimeout)
		})
		c.timerMu.Unlock()
	}
	c.logger.Info().Msg("connection accepted")
}

func handshakePending(st *State) bool { return st.Phase < PhaseSignaling }

// Stop is called by the transport once the remote side is gone.
func (c *Connection) Stop() { c.Terminate(ErrRemoteClosed) }

// Submit queues task behind this connection's earlier tasks.
func (c *Connection) Submit(task worker.Task) error { return c.serial.Submit(task) }

// Ping implements heartbeat.Target.
func (c *Connection) Ping() error { return c.transport.Ping() }

func (c *Connection) OnMessage(raw []byte) {
	st := c.state.Load()
	switch st.Phase {
	case PhaseTerminated:
		return
	case PhaseReady:
		c.onHandshake(st, raw)
	case PhaseSignaling:
		c.onSignaling(st, raw)
	default:
		msg, err := c.o.Decoder.Decode(raw)
		if err != nil {
			c.Terminate(err)
			return
		}
		c.Terminate(protocol.Unexpected(msg.Kind(), st.Phase))
	}
}

func (c *Connection) onHandshake(ready *State, raw []byte) {
	msg, err := c.o.Decoder.Decode(raw)
	if err != nil {
		c.Terminate(err)
		return
	}
	hs, ok := msg.(protocol.Handshake)
	if !ok {
		c.Terminate(protocol.Unexpected(msg.Kind(), PhaseReady))
		return
	}
	version := hs.Header().Version
	handshaking := ready.with(func(s *State) {
		s.Phase = PhaseHandshaking
		s.Version = version
	})
	if !c.state.CompareAndSwap(ready, handshaking) {
		return
	}

	handler, err := c.o.Handshakes.Lookup(version)
	if err != nil {
		c.Terminate(err)
		return
	}
	h, err := handler.Handle(hs, c.fallback, c)
	if err != nil {
		c.Terminate(err)
		return
	}
	profile := h.Request().Profile
	if err := c.o.Registry.Claim(profile, c.id); err != nil {
		h.Cancel()
		c.Terminate(err)
		return
	}

	matching := handshaking.with(func(s *State) {
		s.Phase = PhaseMatching
		s.Handle = h
		s.Auth = &AuthRecord{Profile: profile}
	})
	if !c.state.CompareAndSwap(handshaking, matching) {
		h.Cancel()
		c.o.Registry.Release(profile, c.id)
		return
	}
	c.logger.Info().Str("kind", string(hs.Kind())).Str("profile", string(profile)).Msg("matchmaking started")
	h.StartMatching()
}

// Success implements match.Callback.
func (c *Connection) Success(h match.Handle) {
	res, err := h.GetResult()
	if err != nil {
		c.Terminate(err)
		return
	}

	var signaling *State
	for {
		st := c.state.Load()
		if st.Phase == PhaseTerminated {
			c.logger.Info().Str("match", string(res.MatchID)).Msg("match result after termination, leaving")
			h.LeaveMatch()
			return
		}
		if st.Phase != PhaseMatching || st.Handle != h {
			c.logger.Error().Str("phase", st.Phase.String()).Msg("unexpected match result")
			h.LeaveMatch()
			return
		}
		signaling = st.with(func(s *State) {
			s.Phase = PhaseSignaling
			s.Auth = &AuthRecord{Profile: st.Auth.Profile, MatchID: res.MatchID}
		})
		if c.state.CompareAndSwap(st, signaling) {
			break
		}
	}
	c.stopTimer()

	logger := c.logger.With().Str("profile", string(res.Profile)).Str("match", string(res.MatchID)).Logger()
	logger.Info().Int("participants", len(res.Participants)).Bool("created", res.Created).Msg("matched")

	// Signals the client sends after reading the response queue behind
	// this task, so they are published only once the subscription exists.
	c.submitOrTerminate(func(context.Context) {
		if err := c.send(c.response(h, res)); err != nil {
			c.Terminate(err)
			return
		}
		sub := c.o.Relays.Subscribe(res.MatchID, res.Profile, c.deliver, c.Terminate)
		if !c.state.CompareAndSwap(signaling, signaling.with(func(s *State) { s.Sub = sub })) {
			sub.Release()
		}
	})
}

func (c *Connection) response(h match.Handle, res match.Result) protocol.Message {
	if _, ok := h.Request().Handshake.(*protocol.Find); ok {
		return &protocol.Matched{MatchID: res.MatchID, ProfileID: res.Profile, Participants: res.Participants}
	}
	host, _ := c.o.Relays.Host(res.MatchID)
	return &protocol.Connected{
		MatchID:      res.MatchID,
		ProfileID:    res.Profile,
		Participants: res.Participants,
		JoinCode:     res.JoinCode,
		Host:         host,
	}
}

// Failure implements match.Callback.
func (c *Connection) Failure(err error) {
	c.logger.Warn().Err(err).Msg("matchmaking failure")
	c.Terminate(err)
}

// Ended implements match.Callback. The relay notifies every subscriber,
// this connection included.
func (c *Connection) Ended(h match.Handle) {
	res, _ := h.FindResult()
	c.logger.Info().Str("match", string(res.MatchID)).Msg("match ended")
	c.o.Relays.End(res.MatchID)
}

// Terminate moves the connection to its final phase. Only the call that
// performs the transition cleans up, so at most one error frame is sent.
func (c *Connection) Terminate(cause error) {
	c.terminateIf(nil, cause)
}

// terminateIf terminates only if pred holds for the state the transition
// replaces. A nil pred always holds.
func (c *Connection) terminateIf(pred func(*State) bool, cause error) {
	for {
		st := c.state.Load()
		if st.Phase == PhaseTerminated || (pred != nil && !pred(st)) {
			return
		}
		final := &State{Phase: PhaseTerminated, Version: st.Version, Auth: st.Auth}
		if c.state.CompareAndSwap(st, final) {
			c.cleanup(st, cause)
			return
		}
	}
}

func (c *Connection) cleanup(prev *State, cause error) {
	c.stopTimer()
	c.o.Pinger.Remove(c.id)

	switch prev.Phase {
	case PhaseMatching:
		prev.Handle.Cancel()
	case PhaseSignaling:
		c.publish(prev.Auth, &protocol.Disconnect{})
		if prev.Sub != nil {
			prev.Sub.Release()
		}
		prev.Handle.LeaveMatch()
	}
	if prev.Auth != nil {
		c.o.Registry.Release(prev.Auth.Profile, c.id)
		if c.o.Limiter != nil {
			c.o.Limiter.Forget(prev.Auth.Profile)
		}
	}

	reason, withError := closeFor(cause)
	text := ""
	if withError {
		pe := protocol.AsError(cause)
		text = string(pe.Code)
		if err := c.send(pe); err != nil {
			c.logger.Debug().Err(err).Msg("error frame not sent")
		}
	}
	c.transport.Close(reason, text)
	c.o.forget(c)

	ev := c.logger.Info()
	if withError {
		ev = c.logger.Warn()
	}
	ev.Err(cause).Str("phase", prev.Phase.String()).Msg("connection terminated")
}

func (c *Connection) stopTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Connection) send(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return c.transport.TrySend(frame)
}

func (c *Connection) submitOrTerminate(task worker.Task) {
	if err := c.Submit(task); err != nil {
		c.rejected(err)
	}
}

// rejected terminates the connection after the pool refused its work.
func (c *Connection) rejected(err error) {
	if errors.Is(err, worker.ErrStopped) {
		c.Terminate(ErrShutdown)
		return
	}
	c.Terminate(protocol.Wrap(protocol.CodeUnknown, err, "server overloaded"))
}
