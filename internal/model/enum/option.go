package enum

// OptionSide CE (call), PE (put)
type OptionSide uint8

const (
	_option_side_beg OptionSide = iota
	OptionSideCE
	OptionSidePE
	_option_side_end
)

func (s OptionSide) IsAvailable() bool {
	return s > _option_side_beg && s < _option_side_end
}

func (s OptionSide) String() string {
	switch s {
	case OptionSideCE:
		return "CE"
	case OptionSidePE:
		return "PE"
	default:
		return "NONE"
	}
}

// Opposite returns the other directional side.
func (s OptionSide) Opposite() OptionSide {
	switch s {
	case OptionSideCE:
		return OptionSidePE
	case OptionSidePE:
		return OptionSideCE
	default:
		return s
	}
}
