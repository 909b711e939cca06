// Package relay distributes signaling messages between the participants
// of a match. A Relay exists per match while it has subscribers.
package relay

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

var (
	ErrNoRelay   = errors.New("relay: no relay for match")
	ErrHostTaken = protocol.Errorf(protocol.CodeUnauthorized, "match already has a host")
)

// maxEnded bounds the ended-match tombstones kept to refuse late
// subscribers.
const maxEnded = 4096

type Manager struct {
	mu     sync.RWMutex
	relays map[domain.MatchID]*Relay
	// ended holds recently ended matches, oldest first in endedOrder.
	ended      map[domain.MatchID]struct{}
	endedOrder []domain.MatchID
}

func NewManager() *Manager {
	return &Manager{
		relays: make(map[domain.MatchID]*Relay),
		ended:  make(map[domain.MatchID]struct{}),
	}
}

// Subscription is released exactly once; Release is safe to repeat.
type Subscription struct {
	m    *Manager
	id   domain.MatchID
	sub  *subscriber
	once sync.Once
}

func (s *Subscription) MatchID() domain.MatchID { return s.id }

func (s *Subscription) Release() {
	s.once.Do(func() { s.m.release(s.id, s.sub) })
}

// Subscribe registers profile on the match relay and replays retained
// signals before returning. A signal published concurrently is delivered
// exactly once: either in the replay or live, never both. onError is
// called when delivery fails or the match ends; the subscription is
// already dead by then. Subscribing to an ended match reports
// protocol.ErrMatchEnded before returning.
func (m *Manager) Subscribe(
	id domain.MatchID,
	profile domain.ProfileID,
	onSignal func(protocol.Signal) error,
	onError func(error),
) *Subscription {
	sub := &subscriber{profile: profile, onSignal: onSignal, onError: onError}

	m.mu.Lock()
	if _, gone := m.ended[id]; gone {
		m.mu.Unlock()
		sub.MarkDelete()
		log.Debug().Str("module", "relay").Str("match", string(id)).Str("profile", string(profile)).
			Msg("subscribe after match end")
		onError(protocol.ErrMatchEnded)
		return &Subscription{m: m, id: id, sub: sub}
	}
	r, ok := m.relays[id]
	if !ok {
		r = newRelay(id, log.With().Str("module", "relay").Str("match", string(id)).Logger())
		m.relays[id] = r
		r.logger.Debug().Msg("relay created")
	}
	r.mu.Lock()
	if old, ok := r.subscribers[profile]; ok {
		old.MarkDelete()
		r.logger.Warn().Str("profile", string(profile)).Msg("replacing subscriber")
	}
	r.subscribers[profile] = sub
	replay := r.replayFor(sub)
	sub.mu.Lock()
	r.mu.Unlock()
	m.mu.Unlock()

	var err error
	for _, sig := range replay {
		if err = sub.deliver(sig); err != nil {
			break
		}
	}
	sub.mu.Unlock()

	s := &Subscription{m: m, id: id, sub: sub}
	if err != nil {
		m.fail(r, sub, err)
	}
	return s
}

// Publish delivers sig to its recipients in the match. Direct signals
// whose recipient has not subscribed yet are only retained (if persisted).
func (m *Manager) Publish(id domain.MatchID, sig protocol.Signal) error {
	m.mu.RLock()
	r, ok := m.relays[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNoRelay
	}

	targets, err := r.publish(sig)
	if err != nil {
		return err
	}
	for _, sub := range targets {
		sub.mu.Lock()
		err := sub.deliver(sig)
		sub.mu.Unlock()
		if err != nil {
			m.fail(r, sub, err)
		}
	}
	return nil
}

// fail marks sub deleted and reports err outside every lock.
func (m *Manager) fail(r *Relay, sub *subscriber, err error) {
	if !sub.MarkDelete() {
		return
	}
	r.logger.Warn().Err(err).Str("profile", string(sub.profile)).Msg("delivery failed, dropping subscriber")
	m.release(r.id, sub)
	sub.onError(err)
}

func (m *Manager) release(id domain.MatchID, sub *subscriber) {
	sub.MarkDelete()

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relays[id]
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.subscribers[sub.profile]; !ok || cur != sub {
		return
	}
	delete(r.subscribers, sub.profile)
	if len(r.subscribers) == 0 {
		r.closed = true
		delete(m.relays, id)
		r.logger.Debug().Msg("relay removed")
	}
}

// End closes the relay and notifies every subscriber with
// protocol.ErrMatchEnded. Later subscribers get the same error.
func (m *Manager) End(id domain.MatchID) {
	m.mu.Lock()
	m.markEnded(id)
	r, ok := m.relays[id]
	if ok {
		delete(m.relays, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	r.closed = true
	subs := make([]*subscriber, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		subs = append(subs, sub)
	}
	clear(r.subscribers)
	r.mu.Unlock()

	r.logger.Info().Int("subscribers", len(subs)).Msg("match ended, closing relay")
	for _, sub := range subs {
		if sub.MarkDelete() {
			sub.onError(protocol.ErrMatchEnded)
		}
	}
}

func (m *Manager) markEnded(id domain.MatchID) {
	if _, ok := m.ended[id]; ok {
		return
	}
	m.ended[id] = struct{}{}
	m.endedOrder = append(m.endedOrder, id)
	if len(m.endedOrder) > maxEnded {
		delete(m.ended, m.endedOrder[0])
		m.endedOrder[0] = ""
		m.endedOrder = m.endedOrder[1:]
	}
}

// Host returns the profile that announced itself host, if any.
func (m *Manager) Host(id domain.MatchID) (domain.ProfileID, bool) {
	m.mu.RLock()
	r, ok := m.relays[id]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	h := r.Host()
	return h, h != ""
}

type Stats struct {
	Relays      int `json:"relays"`
	Subscribers int `json:"subscribers"`
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Relays: len(m.relays)}
	for _, r := range m.relays {
		r.mu.Lock()
		st.Subscribers += len(r.subscribers)
		r.mu.Unlock()
	}
	return st
}
