package handshake

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
)

const Version1 = "1_0"

type V1 struct {
	matches *match.Registry
}

func NewV1(matches *match.Registry) *V1 { return &V1{matches: matches} }

func (*V1) Version() string { return Version1 }

func (v *V1) Handle(hs protocol.Handshake, fallback domain.ProfileID, owner match.Callback) (match.Handle, error) {
	profile := hs.Header().ProfileID
	if profile == "" {
		profile = fallback
	}
	if profile == "" {
		profile = domain.NewProfileID()
	}

	// join and joinCode name no configuration and use the default
	// application's algorithm.
	var app domain.Application
	switch m := hs.(type) {
	case *protocol.Find:
		app = v.matches.Application(m.Configuration)
	case *protocol.Create:
		app = v.matches.Application(m.Configuration)
	default:
		app = v.matches.Application("")
	}

	alg, err := v.matches.Lookup(app.Algorithm)
	if err != nil {
		return nil, protocol.Wrap(protocol.CodeMatchmakingFailed, err, "no matchmaking algorithm")
	}

	req := match.Request{Profile: profile, Handshake: hs, App: app, Owner: owner}
	var h match.Handle
	if _, ok := hs.(*protocol.Join); ok {
		h, err = alg.Resume(req)
	} else {
		h, err = alg.Initialize(req)
	}
	if err != nil {
		return nil, protocol.Wrap(protocol.CodeInvalidMessage, err, "handshake not supported")
	}
	log.Debug().Str("module", "handshake").Str("kind", string(hs.Kind())).Str("profile", string(profile)).
		Str("algorithm", alg.Name()).Msg("match handle built")
	return h, nil
}
