package model

import "main/internal/model/enum"

// Position is a credential's open (or closed) trade. At most one position
// per credential is in entry state at any time.
type Position struct {
	ID           string
	CredentialID string
	Contract     Contract
	Side         enum.OptionSide
	Quantity     int64
	State        enum.PositionState
}

// Open reports whether the position still holds exposure.
func (p Position) Open() bool {
	return p.State == enum.PositionStateEntry
}
