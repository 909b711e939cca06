package app

import (
	"fmt"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

type BackpressureAction int

const (
	KickMember BackpressureAction = iota
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "unknown"
	}
}

// Policy decides what happens when a relayed signal does not fit into a
// subscriber's send buffer.
type Policy interface {
	OnBackPressure(match domain.MatchID, member domain.ProfileID, sig protocol.Signal) BackpressureAction
}

// SimplePolicy always kicks the slow member.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.MatchID, domain.ProfileID, protocol.Signal) BackpressureAction {
	return KickMember
}

// LenientPolicy drops once-signals and kicks only when a persisted signal
// would be lost.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(_ domain.MatchID, _ domain.ProfileID, sig protocol.Signal) BackpressureAction {
	if protocol.EffectiveLifecycle(sig) == protocol.LifecyclePersisted {
		return KickMember
	}
	return DropFrame
}

// PolicyByName maps the signaling.backpressure setting to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return LenientPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
