// Package heartbeat supervises connection liveness with transport-level
// ping/pong.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Matchbox/internal/protocol"
)

// Target is a supervised connection.
type Target interface {
	ID() string
	Ping() error
	Terminate(cause error)
}

type peer struct {
	target Target

	mu      sync.Mutex
	pending uint64 // id of the unanswered ping, zero when none
	seq     uint64
	timer   clockwork.Timer
	gone    bool
}

// Pinger pings every peer once per interval and terminates peers that do
// not answer within deadline.
type Pinger struct {
	clock    clockwork.Clock
	interval time.Duration
	deadline time.Duration
	logger   zerolog.Logger

	mu    sync.RWMutex
	peers map[string]*peer

	inflight conc.WaitGroup
}

func NewPinger(c clockwork.Clock, interval, deadline time.Duration) *Pinger {
	return &Pinger{
		clock:    c,
		interval: interval,
		deadline: deadline,
		logger:   log.With().Str("module", "heartbeat").Logger(),
		peers:    make(map[string]*peer),
	}
}

func (p *Pinger) Add(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers[t.ID()] = &peer{target: t}
}

func (p *Pinger) Remove(id string) {
	p.mu.Lock()
	pr, ok := p.peers[id]
	delete(p.peers, id)
	p.mu.Unlock()
	if !ok {
		return
	}
	pr.mu.Lock()
	pr.gone = true
	if pr.timer != nil {
		pr.timer.Stop()
	}
	pr.mu.Unlock()
}

// Pong answers the outstanding ping of id, if any.
func (p *Pinger) Pong(id string) {
	p.mu.RLock()
	pr, ok := p.peers[id]
	p.mu.RUnlock()
	if !ok {
		return
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.pending = 0
	if pr.timer != nil {
		pr.timer.Stop()
		pr.timer = nil
	}
}

func (p *Pinger) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.peers)
}

func (p *Pinger) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	p.logger.Info().Dur("interval", p.interval).Dur("deadline", p.deadline).Msg("pinger started")
	for {
		select {
		case <-ctx.Done():
			if r := p.inflight.WaitAndRecover(); r != nil {
				p.logger.Error().Err(r.AsError()).Msg("ping panicked")
			}
			p.logger.Info().Msg("pinger stopped")
			return nil
		case <-ticker.Chan():
			p.Tick()
		}
	}
}

// Tick runs one heartbeat round. Deadlines are armed here; the transport
// pings run on their own goroutines, so a peer whose Ping stalls delays
// neither the round nor any other peer.
func (p *Pinger) Tick() {
	p.mu.RLock()
	snapshot := make([]*peer, 0, len(p.peers))
	for _, pr := range p.peers {
		snapshot = append(snapshot, pr)
	}
	p.mu.RUnlock()

	for _, pr := range snapshot {
		if !p.arm(pr) {
			continue
		}
		p.inflight.Go(func() {
			if err := pr.target.Ping(); err != nil {
				p.logger.Warn().Err(err).Str("conn", pr.target.ID()).Msg("ping failed")
				p.expire(pr, 0, err)
			}
		})
	}
}

// arm starts a deadline for pr unless a ping is already outstanding.
// The deadline covers the ping write as well as the pong.
func (p *Pinger) arm(pr *peer) bool {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.gone || pr.pending != 0 {
		return false
	}
	pr.seq++
	id := pr.seq
	pr.pending = id
	pr.timer = p.clock.AfterFunc(p.deadline, func() {
		p.expire(pr, id, protocol.ErrHeartbeatTimeout)
	})
	return true
}

// expire terminates the peer unless ping id was answered in the
// meantime. id zero expires unconditionally.
func (p *Pinger) expire(pr *peer, id uint64, cause error) {
	pr.mu.Lock()
	if pr.gone || (id != 0 && pr.pending != id) {
		pr.mu.Unlock()
		return
	}
	pr.gone = true
	pr.mu.Unlock()

	tid := pr.target.ID()
	p.mu.Lock()
	if p.peers[tid] == pr {
		delete(p.peers, tid)
	}
	p.mu.Unlock()

	if id != 0 {
		p.logger.Info().Str("conn", tid).Msg("heartbeat deadline exceeded")
	}
	pr.target.Terminate(cause)
}
