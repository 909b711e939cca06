package orch

import (
	"errors"

	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/protocol"
)

// Authorize accepts ctl unless it is host-only and the acting profile is
// not the recorded host of the match.
func (c *Connection) Authorize(auth *AuthRecord, ctl protocol.Control) error {
	hostOnly := ctl.Header().HostOnly || c.o.HostOnly[ctl.Kind()]
	if !hostOnly {
		return nil
	}
	host, ok := c.o.Relays.Host(auth.MatchID)
	if !ok || host != auth.Profile {
		return protocol.Errorf(protocol.CodeUnauthorized, "%s requires the match host", ctl.Kind())
	}
	return nil
}

func (c *Connection) onControl(st *State, ctl protocol.Control) {
	ctl.Header().ProfileID = st.Auth.Profile
	if err := c.Authorize(st.Auth, ctl); err != nil {
		c.logger.Warn().Err(err).Str("kind", string(ctl.Kind())).Msg("control rejected")
		return
	}

	var err error
	switch ctl.(type) {
	case *protocol.Open:
		err = st.Handle.OpenMatch()
	case *protocol.Close:
		err = st.Handle.CloseMatch()
	case *protocol.End:
		err = st.Handle.EndMatch()
	case *protocol.Leave:
		c.Terminate(nil)
		return
	}
	if errors.Is(err, match.ErrNotMatched) {
		c.logger.Debug().Str("kind", string(ctl.Kind())).Msg("control on released match ignored")
		return
	}
	if err != nil {
		c.Terminate(err)
	}
}
