package orch

import (
	"errors"

	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/app/relay"
	"github.com/dkeye/Matchbox/internal/core"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

type Phase int

const (
	PhaseReady Phase = iota
	PhaseHandshaking
	PhaseMatching
	PhaseSignaling
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseHandshaking:
		return "handshaking"
	case PhaseMatching:
		return "matching"
	case PhaseSignaling:
		return "signaling"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// AuthRecord is the identity a connection speaks for and, once matched,
// the match it belongs to.
type AuthRecord struct {
	Profile domain.ProfileID
	MatchID domain.MatchID
}

// State is never modified after it is published; transitions build a new
// value and swap it in.
type State struct {
	Phase   Phase
	Version string
	Handle  match.Handle
	Auth    *AuthRecord
	Sub     *relay.Subscription
}

func (s *State) with(fn func(*State)) *State {
	next := *s
	fn(&next)
	return &next
}

var (
	// ErrRemoteClosed terminates without an error frame.
	ErrRemoteClosed = errors.New("orch: remote closed")
	// ErrShutdown terminates without an error frame and a going-away close.
	ErrShutdown = errors.New("orch: server shutting down")
	ErrKicked   = errors.New("orch: send buffer full")
)

// closeFor maps a termination cause to the close reason and whether a
// Protocol Error frame precedes the close.
func closeFor(cause error) (core.CloseReason, bool) {
	switch {
	case cause == nil, errors.Is(cause, ErrRemoteClosed):
		return core.CloseNormal, false
	case errors.Is(cause, ErrShutdown):
		return core.CloseGoingAway, false
	}
	switch protocol.CodeOf(cause) {
	case protocol.CodeTimeout:
		return core.CloseGoingAway, true
	case protocol.CodeMatchEnded:
		return core.CloseNormal, true
	case protocol.CodeInvalidMessage, protocol.CodeNotFound, protocol.CodeUnexpectedMessage,
		protocol.CodeUnauthorized, protocol.CodeDuplicateConnection:
		return core.ClosePolicyViolation, true
	default:
		return core.CloseInternalError, true
	}
}
