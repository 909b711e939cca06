// Package store defines the transactional persistence contract the
// matchmaking core depends on. The core never caches membership across
// transactions; every mutation re-reads inside its own Tx.
package store

import (
	"context"
	"errors"

	"github.com/dkeye/Matchbox/internal/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrClosed   = errors.New("store: closed")
)

// Store runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise (including on panic); it is always
// released before InTx returns.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

type Tx interface {
	// FindOpenMatch returns the oldest OPEN match for config that exclude
	// does not participate in and that has fewer than maxParticipants
	// participants (zero means unlimited). ErrNotFound when none exists.
	FindOpenMatch(config string, exclude domain.ProfileID, maxParticipants int) (*domain.Match, error)
	GetMatch(id domain.MatchID) (*domain.Match, error)
	GetMatchByCode(code domain.JoinCode) (*domain.Match, error)
	CreateMatch(m *domain.Match) error
	SetStatus(id domain.MatchID, status domain.MatchStatus) error
	// AddParticipant is a no-op when the profile is already a participant.
	AddParticipant(id domain.MatchID, profile domain.ProfileID) error
	// RemoveParticipant deletes the match when the last participant goes.
	// removed is false when the profile was not a participant.
	RemoveParticipant(id domain.MatchID, profile domain.ProfileID) (removed bool, remaining int, err error)
	Participants(id domain.MatchID) ([]domain.ProfileID, error)
	DeleteMatch(id domain.MatchID) error
}
