// Package protocol defines the closed set of messages exchanged with
// clients and their wire encoding. Every unit on the wire is a JSON object
// whose "type" field selects the variant.
package protocol

// Kind is the wire discriminator.
type Kind string

const (
	KindFind     Kind = "find"
	KindJoin     Kind = "join"
	KindCreate   Kind = "create"
	KindJoinCode Kind = "joinCode"

	KindMatched   Kind = "matched"
	KindConnected Kind = "connected"

	KindOpen  Kind = "open"
	KindClose Kind = "close"
	KindLeave Kind = "leave"
	KindEnd   Kind = "end"

	KindSDPOffer        Kind = "sdpOffer"
	KindCandidate       Kind = "candidate"
	KindHost            Kind = "host"
	KindDisconnect      Kind = "disconnect"
	KindStringRelay     Kind = "stringRelay"
	KindStringBroadcast Kind = "stringBroadcast"

	KindError Kind = "error"
)

// Message is implemented by every variant.
type Message interface {
	Kind() Kind
}

// inbound lists the variants a client may send, with a constructor for
// the concrete type the payload is decoded into.
var inbound = map[Kind]func() Message{
	KindFind:     func() Message { return &Find{} },
	KindJoin:     func() Message { return &Join{} },
	KindCreate:   func() Message { return &Create{} },
	KindJoinCode: func() Message { return &JoinCode{} },

	KindOpen:  func() Message { return &Open{} },
	KindClose: func() Message { return &Close{} },
	KindLeave: func() Message { return &Leave{} },
	KindEnd:   func() Message { return &End{} },

	KindSDPOffer:        func() Message { return &SDPOffer{} },
	KindCandidate:       func() Message { return &Candidate{} },
	KindHost:            func() Message { return &Host{} },
	KindDisconnect:      func() Message { return &Disconnect{} },
	KindStringRelay:     func() Message { return &StringRelay{} },
	KindStringBroadcast: func() Message { return &StringBroadcast{} },
}
