package relay

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

type SubscriberState int32

const (
	SubscriberOk SubscriberState = iota
	SubscriberDelete
)

// subscriber is one connection's view of a relay. mu serializes delivery
// so replay and live signals never interleave.
type subscriber struct {
	profile  domain.ProfileID
	onSignal func(protocol.Signal) error
	onError  func(error)

	mu    sync.Mutex
	state atomic.Int32
}

func (s *subscriber) GetState() SubscriberState {
	return SubscriberState(s.state.Load())
}

// MarkDelete reports whether this call made the transition.
func (s *subscriber) MarkDelete() bool {
	return s.state.CompareAndSwap(int32(SubscriberOk), int32(SubscriberDelete))
}

// deliver must be called with s.mu held.
func (s *subscriber) deliver(sig protocol.Signal) error {
	if s.GetState() == SubscriberDelete {
		return nil
	}
	return s.onSignal(sig)
}

// wants reports whether sig is addressed to s.
func (s *subscriber) wants(sig protocol.Signal) bool {
	h := sig.Header()
	if h.From == s.profile {
		return false
	}
	return !sig.Direct() || h.To == s.profile
}
