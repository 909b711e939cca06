package protocol

import "github.com/dkeye/Matchbox/internal/domain"

// ControlHeader is shared by the administrative variants. ProfileID is
// overwritten server-side with the authenticated sender.
type ControlHeader struct {
	ProfileID domain.ProfileID `json:"profileId,omitempty"`
	HostOnly  bool             `json:"hostOnly,omitempty"`
}

func (h *ControlHeader) Header() *ControlHeader { return h }

type Control interface {
	Message
	Header() *ControlHeader
}

type (
	Open  struct{ ControlHeader }
	Close struct{ ControlHeader }
	Leave struct{ ControlHeader }
	End   struct{ ControlHeader }
)

func (*Open) Kind() Kind  { return KindOpen }
func (*Close) Kind() Kind { return KindClose }
func (*Leave) Kind() Kind { return KindLeave }
func (*End) Kind() Kind   { return KindEnd }
