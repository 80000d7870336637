package enum

// PositionState entry (open), exit (closed)
type PositionState uint8

const (
	_position_state_beg PositionState = iota
	PositionStateEntry
	PositionStateExit
	_position_state_end
)

func (s PositionState) IsAvailable() bool {
	return s > _position_state_beg && s < _position_state_end
}

func (s PositionState) String() string {
	switch s {
	case PositionStateEntry:
		return "entry"
	case PositionStateExit:
		return "exit"
	default:
		return "unknown"
	}
}
