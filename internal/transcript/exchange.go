// Package transcript manages the story transcript of an Aethel session.
// It maps between the plain-text save file, the in-memory exchange log
// collected while playing, and the context string handed to the model when
// a session starts. Nothing in this package performs I/O.
package transcript

import (
	"errors"
	"strings"
)

var (
	ErrEmptyContent        = errors.New("exchange has no content")
	ErrInvalidRole         = errors.New("invalid exchange role")
	ErrInvalidState        = errors.New("operation not valid in current session state")
	ErrNothingToRegenerate = errors.New("no player turn to regenerate")
)

// Role identifies who produced an exchange.
type Role string

const (
	RolePlayer   Role = "player"
	RoleNarrator Role = "narrator"
)

// Label returns the transcript label for the role.
func (r Role) Label() string {
	switch r {
	case RolePlayer:
		return PlayerLabel
	case RoleNarrator:
		return NarratorLabel
	default:
		return ""
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePlayer || r == RoleNarrator
}

// Exchange is one turn of the conversation.
type Exchange struct {
	// Role is the originator of the exchange
	Role Role `json:"role"`

	// Parts holds the text parts as returned upstream. Model responses may
	// legitimately carry zero parts.
	Parts []string `json:"parts"`
}

// NewExchange builds an exchange from a single text body.
func NewExchange(role Role, text string) Exchange {
	return Exchange{Role: role, Parts: []string{text}}
}

// Text returns the concatenated text parts.
func (e Exchange) Text() string {
	return strings.Join(e.Parts, "")
}

// IsEmpty reports whether the exchange carries no visible text.
func (e Exchange) IsEmpty() bool {
	for _, p := range e.Parts {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}
