package domain

// Application is the configuration a match is made for, selected by the
// configuration token of a find/create handshake.
type Application struct {
	Name            string
	Algorithm       string
	MaxParticipants int // zero means unlimited
}

func (a Application) Full(participants int) bool {
	return a.MaxParticipants > 0 && participants >= a.MaxParticipants
}
