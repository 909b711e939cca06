package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	MatchID  string
	JoinCode string
)

type MatchStatus int

const (
	MatchOpen MatchStatus = iota
	MatchClosed
	MatchEnded
)

func (s MatchStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *MatchStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "OPEN":
		*s = MatchOpen
	case "CLOSED":
		*s = MatchClosed
	case "ENDED":
		*s = MatchEnded
	default:
		return fmt.Errorf("unknown match status %q", b)
	}
	return nil
}

func (s MatchStatus) String() string {
	switch s {
	case MatchOpen:
		return "OPEN"
	case MatchClosed:
		return "CLOSED"
	case MatchEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Match is the persisted match record. The store owns it; everything else
// refers to it by ID and re-reads it inside a transaction before mutating.
type Match struct {
	ID           MatchID     `json:"id"`
	Config       string      `json:"configuration"`
	Status       MatchStatus `json:"status"`
	JoinCode     JoinCode    `json:"joinCode,omitempty"`
	Participants []ProfileID `json:"participants"`
	CreatedAt    time.Time   `json:"createdAt"`
}

func NewMatch(config string, now time.Time) *Match {
	return &Match{
		ID:        MatchID(uuid.NewString()),
		Config:    config,
		Status:    MatchOpen,
		CreatedAt: now,
	}
}

// NewJoinCode returns a short human-typeable code.
func NewJoinCode() JoinCode {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return JoinCode(strings.ToUpper(raw[:8]))
}

func (m *Match) HasParticipant(id ProfileID) bool {
	return slices.Contains(m.Participants, id)
}

func (m *Match) Clone() *Match {
	c := *m
	c.Participants = slices.Clone(m.Participants)
	return &c
}
