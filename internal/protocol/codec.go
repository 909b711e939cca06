package protocol

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dkeye/Matchbox/internal/core"
)

type validator interface {
	validate() error
}

// Decoder turns raw frames into inbound messages.
type Decoder struct {
	// ValidateSDP parses sdpOffer descriptions with pion and rejects
	// malformed ones.
	ValidateSDP bool
}

// Decode returns a *Error with CodeInvalidMessage for anything that is
// not a well-formed inbound variant.
func (d Decoder) Decode(data []byte) (Message, error) {
	var env struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Wrap(CodeInvalidMessage, err, "malformed message")
	}
	newMsg, ok := inbound[env.Type]
	if !ok {
		return nil, Errorf(CodeInvalidMessage, "unknown message type %q", env.Type)
	}
	msg := newMsg()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, Wrap(CodeInvalidMessage, err, fmt.Sprintf("malformed %s payload", env.Type))
	}
	if v, ok := msg.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	if offer, ok := msg.(*SDPOffer); ok && d.ValidateSDP {
		if _, err := offer.Description.Unmarshal(); err != nil {
			return nil, Wrap(CodeInvalidMessage, err, "unparseable sdp")
		}
	}
	return msg, nil
}

// Encode marshals m and injects the "type" discriminator.
func Encode(m Message) (core.Frame, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: not an object", m.Kind())
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 16 + len(m.Kind()))
	buf.WriteString(`{"type":`)
	kind, _ := json.Marshal(string(m.Kind()))
	buf.Write(kind)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
