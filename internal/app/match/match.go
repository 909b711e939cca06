// Package match holds the matchmaking algorithm contract and the
// cancelable match handle every algorithm hands back.
//
// Algorithms split construction from work: Initialize and Resume return a
// Handle without touching the store, and the caller starts the actual
// search with Handle.StartMatching. A handle can therefore be cancelled
// before any asynchronous work has begun.
package match

import (
	"errors"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

var (
	ErrNoResult         = errors.New("match: no result")
	ErrNotMatched       = errors.New("match: handle is not matched")
	ErrUnsupported      = errors.New("match: handshake not supported by algorithm")
	ErrUnknownAlgorithm = errors.New("match: unknown algorithm")
)

// Callback receives the outcome of a handle's asynchronous work. Methods
// are called from worker goroutines.
type Callback interface {
	Success(h Handle)
	Failure(err error)
	// Ended is called after EndMatch has committed.
	Ended(h Handle)
}

// Request is immutable once built.
type Request struct {
	Profile   domain.ProfileID
	Handshake protocol.Handshake
	App       domain.Application
	Owner     Callback
}

type Result struct {
	MatchID      domain.MatchID
	Profile      domain.ProfileID
	Participants []domain.ProfileID
	JoinCode     domain.JoinCode
	Created      bool
}

type Algorithm interface {
	Name() string
	// Initialize builds a handle for a new participation (find, create,
	// joinCode). It must not block.
	Initialize(req Request) (Handle, error)
	// Resume builds a handle for rejoining a match the profile already
	// participates in. It must not block.
	Resume(req Request) (Handle, error)
}

// Handle controls one participation. Lifecycle methods return at once;
// their persistence work runs on the worker pool and failures reach
// Request.Owner.Failure.
type Handle interface {
	Request() Request
	StartMatching()
	// Cancel abandons the participation in whatever state it is in. A
	// result that arrives afterwards is released, never delivered.
	Cancel()
	OpenMatch() error
	CloseMatch() error
	// LeaveMatch removes the participant. Repeated calls are no-ops.
	LeaveMatch()
	EndMatch() error
	FindResult() (Result, bool)
	GetResult() (Result, error)
}
