// Package handshake resolves a handshake request into an unstarted match
// handle, per protocol version.
package handshake

import (
	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

// Handler serves one protocol version. Handle must not block.
type Handler interface {
	Version() string
	// Handle builds the match handle for hs. fallback is the profile used
	// when a find request carries none.
	Handle(hs protocol.Handshake, fallback domain.ProfileID, owner match.Callback) (match.Handle, error)
}

type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Version()] = h
	}
	return r
}

// Lookup fails with INVALID_MESSAGE for unknown or missing versions.
func (r *Registry) Lookup(version string) (Handler, error) {
	if version == "" {
		return nil, protocol.Errorf(protocol.CodeInvalidMessage, "missing protocol version")
	}
	h, ok := r.handlers[version]
	if !ok {
		return nil, protocol.Errorf(protocol.CodeInvalidMessage, "unsupported protocol version %q", version)
	}
	return h, nil
}
