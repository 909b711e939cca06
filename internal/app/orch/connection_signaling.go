package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Matchbox/internal/app"
	"github.com/dkeye/Matchbox/internal/app/relay"
	"github.com/dkeye/Matchbox/internal/protocol"
)

func (c *Connection) onSignaling(st *State, raw []byte) {
	msg, err := c.o.Decoder.Decode(raw)
	if err != nil {
		c.Terminate(err)
		return
	}
	switch m := msg.(type) {
	case protocol.Control:
		// Controls queue behind earlier signals so a host announcement is
		// recorded before a host-only control that follows it.
		c.submitOrTerminate(func(context.Context) {
			if cur := c.state.Load(); cur.Phase == PhaseSignaling {
				c.onControl(cur, m)
			}
		})
	case protocol.Signal:
		c.onSignal(st, m)
	default:
		c.Terminate(protocol.Unexpected(msg.Kind(), st.Phase))
	}
}

func (c *Connection) onSignal(st *State, sig protocol.Signal) {
	auth := st.Auth
	if c.o.Limiter != nil && !c.o.Limiter.Allow(auth.Profile) {
		c.logger.Warn().Str("kind", string(sig.Kind())).Msg("signal rate limited, dropped")
		return
	}
	c.submitOrTerminate(func(context.Context) { c.publish(auth, sig) })
}

// publish stamps the sender and hands sig to the relay.
func (c *Connection) publish(auth *AuthRecord, sig protocol.Signal) {
	sig.Header().From = auth.Profile
	err := c.o.Relays.Publish(auth.MatchID, sig)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrHostTaken):
		c.logger.Warn().Str("profile", string(auth.Profile)).Msg("host already recorded, announcement dropped")
	case errors.Is(err, relay.ErrNoRelay):
		c.logger.Debug().Str("kind", string(sig.Kind())).Msg("no relay for match, signal dropped")
	default:
		c.logger.Error().Err(err).Str("kind", string(sig.Kind())).Msg("publish failed")
	}
}

// deliver is the relay callback. A non-nil return drops the subscription
// and terminates the connection through the relay's error callback.
func (c *Connection) deliver(sig protocol.Signal) error {
	frame, err := protocol.Encode(sig)
	if err != nil {
		c.logger.Error().Err(err).Str("kind", string(sig.Kind())).Msg("encode relayed signal")
		return nil
	}
	if err := c.transport.TrySend(frame); err != nil {
		st := c.state.Load()
		if st.Phase == PhaseTerminated || st.Auth == nil {
			return nil
		}
		switch c.o.policy().OnBackPressure(st.Auth.MatchID, st.Auth.Profile, sig) {
		case app.DropFrame:
			c.logger.Warn().Err(err).Str("kind", string(sig.Kind())).Msg("backpressure, frame dropped")
			return nil
		default:
			c.logger.Warn().Err(err).Str("kind", string(sig.Kind())).Msg("backpressure, kicking member")
			return protocol.Wrap(protocol.CodeUnknown, errors.Join(ErrKicked, err), "backpressure")
		}
	}
	return nil
}
