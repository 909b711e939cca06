// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxProfileIDLen = 64

var (
	ErrProfileIDTooLong = errors.New("profile id too long")
	ErrProfileIDEmpty   = errors.New("profile id empty")
)

type ProfileID string

// NewProfileID is used when a find request arrives without an identity.
func NewProfileID() ProfileID {
	return ProfileID(uuid.NewString())
}

func (id ProfileID) Validate() error {
	if len(id) == 0 {
		return ErrProfileIDEmpty
	}
	if len(id) > MaxProfileIDLen {
		return ErrProfileIDTooLong
	}
	return nil
}
