package model

import "main/internal/model/enum"

// Signal is the outcome of one level evaluation. It is a pure function
// output of (candles, levels) and carries no persisted identity.
type Signal struct {
	Kind   enum.SignalKind
	Side   enum.OptionSide
	Reason string
}

// None reports whether nothing fired.
func (s Signal) None() bool {
	return s.Kind == enum.SignalNone || !s.Kind.IsAvailable()
}
