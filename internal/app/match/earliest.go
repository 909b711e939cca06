package match

import (
	"errors"
	"fmt"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
	"github.com/dkeye/Matchbox/internal/store"
)

const EarliestName = "earliest"

// Earliest places a finder into the oldest open match for its
// configuration and opens a new one when none has room.
type Earliest struct {
	env Env
}

func NewEarliest(env Env) *Earliest { return &Earliest{env: env} }

func (*Earliest) Name() string { return EarliestName }

func (e *Earliest) Initialize(req Request) (Handle, error) {
	var find Finder
	switch req.Handshake.(type) {
	case *protocol.Find:
		find = e.find
	case *protocol.Create:
		find = e.create
	case *protocol.JoinCode:
		find = e.joinCode
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, req.Handshake.Kind())
	}
	return NewCancelable(req, find, e.env), nil
}

func (e *Earliest) Resume(req Request) (Handle, error) {
	if _, ok := req.Handshake.(*protocol.Join); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, req.Handshake.Kind())
	}
	return NewCancelable(req, e.resume, e.env), nil
}

func (e *Earliest) find(tx store.Tx, req Request) (Result, error) {
	created := false
	m, err := tx.FindOpenMatch(req.App.Name, req.Profile, req.App.MaxParticipants)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m = domain.NewMatch(req.App.Name, e.env.Clock.Now())
		if err := tx.CreateMatch(m); err != nil {
			return Result{}, err
		}
		created = true
	case err != nil:
		return Result{}, err
	}
	return e.enter(tx, req, m, created)
}

func (e *Earliest) create(tx store.Tx, req Request) (Result, error) {
	m := domain.NewMatch(req.App.Name, e.env.Clock.Now())
	m.JoinCode = domain.NewJoinCode()
	if err := tx.CreateMatch(m); err != nil {
		return Result{}, err
	}
	return e.enter(tx, req, m, true)
}

func (e *Earliest) joinCode(tx store.Tx, req Request) (Result, error) {
	code := req.Handshake.(*protocol.JoinCode).Code
	m, err := tx.GetMatchByCode(code)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, protocol.Wrap(protocol.CodeNotFound, err, fmt.Sprintf("no match for join code %s", code))
	}
	if err != nil {
		return Result{}, err
	}
	if m.Status != domain.MatchOpen && !m.HasParticipant(req.Profile) {
		return Result{}, protocol.Errorf(protocol.CodeMatchmakingFailed, "match %s is %s", m.ID, m.Status)
	}
	return e.enter(tx, req, m, false)
}

func (e *Earliest) resume(tx store.Tx, req Request) (Result, error) {
	id := req.Handshake.(*protocol.Join).MatchID
	m, err := tx.GetMatch(id)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, protocol.Wrap(protocol.CodeNotFound, err, fmt.Sprintf("match %s not found", id))
	}
	if err != nil {
		return Result{}, err
	}
	if !m.HasParticipant(req.Profile) {
		return Result{}, protocol.Wrap(protocol.CodeNotFound, store.ErrNotFound,
			fmt.Sprintf("profile %s is not a participant of match %s", req.Profile, id))
	}
	return result(m, req.Profile, false), nil
}

// enter adds the profile and closes the match once the application's
// capacity is reached.
func (e *Earliest) enter(tx store.Tx, req Request, m *domain.Match, created bool) (Result, error) {
	if err := tx.AddParticipant(m.ID, req.Profile); err != nil {
		return Result{}, err
	}
	participants, err := tx.Participants(m.ID)
	if err != nil {
		return Result{}, err
	}
	m.Participants = participants
	if m.Status == domain.MatchOpen && req.App.Full(len(participants)) {
		if err := tx.SetStatus(m.ID, domain.MatchClosed); err != nil {
			return Result{}, err
		}
		m.Status = domain.MatchClosed
	}
	return result(m, req.Profile, created), nil
}

func result(m *domain.Match, profile domain.ProfileID, created bool) Result {
	return Result{
		MatchID:      m.ID,
		Profile:      profile,
		Participants: m.Participants,
		JoinCode:     m.JoinCode,
		Created:      created,
	}
}
