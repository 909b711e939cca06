package protocol

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Matchbox/internal/domain"
)

// Lifecycle is the retention policy of a relayed signal.
type Lifecycle string

const (
	// LifecycleOnce signals reach only subscribers present at send time.
	LifecycleOnce Lifecycle = "once"
	// LifecyclePersisted signals are replayed to later subscribers until
	// superseded by a newer signal of the same kind, sender and recipient.
	LifecyclePersisted Lifecycle = "persisted"
)

// SignalHeader is shared by all relayed variants. From is always set
// server-side; To is required for direct variants and ignored otherwise.
type SignalHeader struct {
	From      domain.ProfileID `json:"from,omitempty"`
	To        domain.ProfileID `json:"to,omitempty"`
	Lifecycle Lifecycle        `json:"lifecycle,omitempty"`
}

func (h *SignalHeader) Header() *SignalHeader { return h }

type Signal interface {
	Message
	Header() *SignalHeader
	// Direct reports whether the signal goes to a single recipient.
	Direct() bool
	defaultLifecycle() Lifecycle
}

// EffectiveLifecycle returns the signal's lifecycle, falling back to the
// per-kind default when the sender left it empty.
func EffectiveLifecycle(s Signal) Lifecycle {
	if l := s.Header().Lifecycle; l != "" {
		return l
	}
	return s.defaultLifecycle()
}

func (h *SignalHeader) validate(direct bool) error {
	switch h.Lifecycle {
	case "", LifecycleOnce, LifecyclePersisted:
	default:
		return Errorf(CodeInvalidMessage, "unknown lifecycle %q", h.Lifecycle)
	}
	if direct && h.To == "" {
		return Errorf(CodeInvalidMessage, "missing recipient")
	}
	if !direct {
		h.To = ""
	}
	return nil
}

// SDPOffer carries a session description to one recipient.
type SDPOffer struct {
	SignalHeader
	Description webrtc.SessionDescription `json:"description"`
}

func (*SDPOffer) Kind() Kind                  { return KindSDPOffer }
func (*SDPOffer) Direct() bool                { return true }
func (*SDPOffer) defaultLifecycle() Lifecycle { return LifecyclePersisted }

func (m *SDPOffer) validate() error {
	switch m.Description.Type {
	case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer:
	default:
		return Errorf(CodeInvalidMessage, "bad description type %q", m.Description.Type.String())
	}
	if m.Description.SDP == "" {
		return Errorf(CodeInvalidMessage, "empty sdp")
	}
	return m.SignalHeader.validate(true)
}

// Candidate carries one ICE candidate to one recipient.
type Candidate struct {
	SignalHeader
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (*Candidate) Kind() Kind                  { return KindCandidate }
func (*Candidate) Direct() bool                { return true }
func (*Candidate) defaultLifecycle() Lifecycle { return LifecycleOnce }

func (m *Candidate) validate() error {
	return m.SignalHeader.validate(true)
}

// Host announces the sender as the match host.
type Host struct {
	SignalHeader
	Payload string `json:"payload,omitempty"`
}

func (*Host) Kind() Kind                  { return KindHost }
func (*Host) Direct() bool                { return false }
func (*Host) defaultLifecycle() Lifecycle { return LifecyclePersisted }

func (m *Host) validate() error { return m.SignalHeader.validate(false) }

// Disconnect tells the other participants the sender is gone.
type Disconnect struct {
	SignalHeader
}

func (*Disconnect) Kind() Kind                  { return KindDisconnect }
func (*Disconnect) Direct() bool                { return false }
func (*Disconnect) defaultLifecycle() Lifecycle { return LifecycleOnce }

func (m *Disconnect) validate() error { return m.SignalHeader.validate(false) }

type StringRelay struct {
	SignalHeader
	Payload string `json:"payload"`
}

func (*StringRelay) Kind() Kind                  { return KindStringRelay }
func (*StringRelay) Direct() bool                { return true }
func (*StringRelay) defaultLifecycle() Lifecycle { return LifecycleOnce }

func (m *StringRelay) validate() error { return m.SignalHeader.validate(true) }

type StringBroadcast struct {
	SignalHeader
	Payload string `json:"payload"`
}

func (*StringBroadcast) Kind() Kind                  { return KindStringBroadcast }
func (*StringBroadcast) Direct() bool                { return false }
func (*StringBroadcast) defaultLifecycle() Lifecycle { return LifecycleOnce }

func (m *StringBroadcast) validate() error { return m.SignalHeader.validate(false) }
