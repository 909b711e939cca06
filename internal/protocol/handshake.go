package protocol

import "github.com/dkeye/Matchbox/internal/domain"

type HandshakeHeader struct {
	Version    string           `json:"version"`
	ProfileID  domain.ProfileID `json:"profileId,omitempty"`
	SessionKey string           `json:"sessionKey"`
}

func (h *HandshakeHeader) Header() *HandshakeHeader { return h }

func (h *HandshakeHeader) validate(profileRequired bool) error {
	if h.SessionKey == "" {
		return Errorf(CodeInvalidMessage, "missing sessionKey")
	}
	if h.ProfileID == "" {
		if profileRequired {
			return Errorf(CodeInvalidMessage, "missing profileId")
		}
		return nil
	}
	if err := h.ProfileID.Validate(); err != nil {
		return Wrap(CodeInvalidMessage, err, "invalid profileId")
	}
	return nil
}

// Handshake is any of the four handshake request variants.
type Handshake interface {
	Message
	Header() *HandshakeHeader
}

// Find enters the matchmaking queue for a configuration.
type Find struct {
	HandshakeHeader
	Configuration string `json:"configuration"`
}

func (*Find) Kind() Kind { return KindFind }

func (m *Find) validate() error {
	if m.Configuration == "" {
		return Errorf(CodeInvalidMessage, "missing configuration")
	}
	return m.HandshakeHeader.validate(false)
}

// Create always opens a fresh match.
type Create struct {
	HandshakeHeader
	Configuration string `json:"configuration"`
}

func (*Create) Kind() Kind { return KindCreate }

func (m *Create) validate() error {
	if m.Configuration == "" {
		return Errorf(CodeInvalidMessage, "missing configuration")
	}
	return m.HandshakeHeader.validate(true)
}

// Join rejoins a match the profile already participates in.
type Join struct {
	HandshakeHeader
	MatchID domain.MatchID `json:"matchId"`
}

func (*Join) Kind() Kind { return KindJoin }

func (m *Join) validate() error {
	if m.MatchID == "" {
		return Errorf(CodeInvalidMessage, "missing matchId")
	}
	return m.HandshakeHeader.validate(true)
}

// JoinCode joins an open match by its join code.
type JoinCode struct {
	HandshakeHeader
	Code domain.JoinCode `json:"joinCode"`
}

func (*JoinCode) Kind() Kind { return KindJoinCode }

func (m *JoinCode) validate() error {
	if m.Code == "" {
		return Errorf(CodeInvalidMessage, "missing joinCode")
	}
	return m.HandshakeHeader.validate(true)
}

// Matched answers a find.
type Matched struct {
	MatchID      domain.MatchID     `json:"matchId"`
	ProfileID    domain.ProfileID   `json:"profileId"`
	Participants []domain.ProfileID `json:"participants"`
}

func (*Matched) Kind() Kind { return KindMatched }

// Connected answers create, join and joinCode.
type Connected struct {
	MatchID      domain.MatchID     `json:"matchId"`
	ProfileID    domain.ProfileID   `json:"profileId"`
	Participants []domain.ProfileID `json:"participants"`
	JoinCode     domain.JoinCode    `json:"joinCode,omitempty"`
	Host         domain.ProfileID   `json:"host,omitempty"`
}

func (*Connected) Kind() Kind { return KindConnected }
