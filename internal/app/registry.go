package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

// Registry records which connection currently speaks for each profile.
// A profile has at most one live connection.
type Registry struct {
	mu     sync.RWMutex
	owners map[domain.ProfileID]string
}

func NewRegistry() *Registry {
	return &Registry{owners: make(map[domain.ProfileID]string)}
}

// Claim binds profile to conn. Claiming a profile already bound to another
// connection fails with DUPLICATE_CONNECTION; re-claiming by the same
// connection is a no-op.
func (r *Registry) Claim(profile domain.ProfileID, conn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.owners[profile]; ok && owner != conn {
		log.Warn().Str("module", "app.registry").Str("profile", string(profile)).Str("conn", conn).Str("owner", owner).Msg("duplicate connection")
		return protocol.Errorf(protocol.CodeDuplicateConnection, "profile %s is already connected", profile)
	}
	r.owners[profile] = conn
	log.Debug().Str("module", "app.registry").Str("profile", string(profile)).Str("conn", conn).Msg("claimed profile")
	return nil
}

// Release unbinds profile if conn still owns it.
func (r *Registry) Release(profile domain.ProfileID, conn string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[profile] != conn {
		return
	}
	delete(r.owners, profile)
	log.Debug().Str("module", "app.registry").Str("profile", string(profile)).Str("conn", conn).Msg("released profile")
}

func (r *Registry) Owner(profile domain.ProfileID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.owners[profile]
	return conn, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
