package enum

// SignalKind none, buy, sell, exit, directional exit
type SignalKind uint8

const (
	_signal_kind_beg SignalKind = iota
	SignalNone
	SignalBuy
	SignalSell
	SignalExit
	SignalDirectionalExit
	_signal_kind_end
)

func (k SignalKind) IsAvailable() bool {
	return k > _signal_kind_beg && k < _signal_kind_end
}

func (k SignalKind) String() string {
	switch k {
	case SignalNone:
		return "none"
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	case SignalExit:
		return "exit"
	case SignalDirectionalExit:
		return "directional_exit"
	default:
		return "unknown"
	}
}

// Directional reports whether the signal opens a position.
func (k SignalKind) Directional() bool {
	return k == SignalBuy || k == SignalSell
}
