package model

import "time"

// Contract is a resolved tradable option contract. It is derived from the
// catalog per decision and never persisted as a packed string.
type Contract struct {
	Exchange      string
	TradingSymbol string
	Token         string
	LotSize       int64
	Expiry        time.Time
}

// Valid reports whether the contract carries enough to route an order.
func (c Contract) Valid() bool {
	return c.Exchange != "" && c.TradingSymbol != "" && c.Token != "" && c.LotSize > 0
}
