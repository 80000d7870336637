package model

// Candle is one OHLC sample of the underlying.
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Zero reports whether the candle carries no usable price.
func (c Candle) Zero() bool {
	return c.Close == 0 && c.Open == 0
}
