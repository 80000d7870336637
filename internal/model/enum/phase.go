package enum

// MarketPhase closed, pre-open, active, force-flat
type MarketPhase uint8

const (
	_market_phase_beg MarketPhase = iota
	PhaseClosed
	PhasePreOpen
	PhaseActive
	PhaseForceFlat
	_market_phase_end
)

func (p MarketPhase) IsAvailable() bool {
	return p > _market_phase_beg && p < _market_phase_end
}

func (p MarketPhase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhasePreOpen:
		return "pre_open"
	case PhaseActive:
		return "active"
	case PhaseForceFlat:
		return "force_flat"
	default:
		return "unknown"
	}
}
