package relay

import (
	"cmp"
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

type retainKey struct {
	kind protocol.Kind
	from domain.ProfileID
	to   domain.ProfileID
}

type retained struct {
	seq uint64
	sig protocol.Signal
}

// Relay fans signals out to the subscribers of one match and retains
// persisted signals for late subscribers.
type Relay struct {
	id     domain.MatchID
	logger zerolog.Logger

	mu          sync.Mutex
	subscribers map[domain.ProfileID]*subscriber
	retained    map[retainKey]retained
	seq         uint64
	host        domain.ProfileID
	closed      bool
}

func newRelay(id domain.MatchID, logger zerolog.Logger) *Relay {
	return &Relay{
		id:          id,
		logger:      logger,
		subscribers: make(map[domain.ProfileID]*subscriber),
		retained:    make(map[retainKey]retained),
	}
}

// replayFor returns the retained signals addressed to profile, oldest
// first. r.mu must be held.
func (r *Relay) replayFor(sub *subscriber) []protocol.Signal {
	entries := slices.Collect(maps.Values(r.retained))
	slices.SortFunc(entries, func(a, b retained) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]protocol.Signal, 0, len(entries))
	for _, e := range entries {
		if sub.wants(e.sig) {
			out = append(out, e.sig)
		}
	}
	return out
}

// publish retains sig when persisted and returns the subscribers it must
// be delivered to.
func (r *Relay) publish(sig protocol.Signal) ([]*subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrNoRelay
	}

	h := sig.Header()
	if _, ok := sig.(*protocol.Host); ok {
		if r.host != "" && r.host != h.From {
			return nil, ErrHostTaken
		}
		r.host = h.From
	}
	if protocol.EffectiveLifecycle(sig) == protocol.LifecyclePersisted {
		r.seq++
		r.retained[retainKey{kind: sig.Kind(), from: h.From, to: h.To}] = retained{seq: r.seq, sig: sig}
	}

	targets := make([]*subscriber, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		if sub.wants(sig) {
			targets = append(targets, sub)
		}
	}
	return targets, nil
}

func (r *Relay) Host() domain.ProfileID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}
