// Package orch wires connections to matchmaking, relaying and heartbeat.
// Each Connection is a protocol state machine advanced only by
// compare-and-swap on an immutable State snapshot.
package orch

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/app"
	"github.com/dkeye/Matchbox/internal/app/handshake"
	"github.com/dkeye/Matchbox/internal/app/heartbeat"
	"github.com/dkeye/Matchbox/internal/app/relay"
	"github.com/dkeye/Matchbox/internal/app/worker"
	"github.com/dkeye/Matchbox/internal/core"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

type Orchestrator struct {
	Handshakes *handshake.Registry
	Registry   *app.Registry
	Relays     *relay.Manager
	Pinger     *heartbeat.Pinger
	Pool       worker.Submitter
	Policy     app.Policy
	Limiter    *app.RateLimiter
	Clock      clockwork.Clock
	Decoder    protocol.Decoder

	HandshakeTimeout time.Duration
	// HostOnly lists control kinds that require the host whatever the
	// client's hostOnly flag says.
	HostOnly map[protocol.Kind]bool

	mu    sync.RWMutex
	conns map[string]*Connection
}

// Accept creates and starts a connection for t. fallback identifies the
// client when a find handshake carries no profile id.
func (o *Orchestrator) Accept(t core.Transport, fallback domain.ProfileID) *Connection {
	c := newConnection(o, uuid.NewString(), t, fallback)

	o.mu.Lock()
	if o.conns == nil {
		o.conns = make(map[string]*Connection)
	}
	o.conns[c.id] = c
	o.mu.Unlock()

	c.Start()
	return c
}

func (o *Orchestrator) forget(c *Connection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.conns, c.id)
}

func (o *Orchestrator) Connection(id string) (*Connection, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.conns[id]
	return c, ok
}

func (o *Orchestrator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.conns)
}

// Shutdown terminates every live connection with a going-away close.
func (o *Orchestrator) Shutdown() {
	o.mu.RLock()
	conns := make([]*Connection, 0, len(o.conns))
	for _, c := range o.conns {
		conns = append(conns, c)
	}
	o.mu.RUnlock()

	log.Info().Str("module", "orch").Int("connections", len(conns)).Msg("shutting down connections")
	for _, c := range conns {
		c.Terminate(ErrShutdown)
	}
}

func (o *Orchestrator) policy() app.Policy {
	if o.Policy == nil {
		return app.SimplePolicy{}
	}
	return o.Policy
}
