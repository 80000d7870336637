package sizing

// Quantity converts usable capital into an order quantity that is a whole
// number of lots: floor(usable / (ltp * lot)) * lot.
//
// A zero return means "cannot size, skip entry" — never a zero-quantity
// order. Non-positive price or lot size always sizes to zero.
func Quantity(usableCapital, lastTradedPrice float64, lotSize int64) int64 {
	if usableCapital <= 0 || lastTradedPrice <= 0 || lotSize <= 0 {
		return 0
	}

	lots := int64(usableCapital / (lastTradedPrice * float64(lotSize)))
	if lots <= 0 {
		return 0
	}

	return lots * lotSize
}

// Usable applies the configured capital fraction to a balance.
func Usable(balance, fraction float64) float64 {
	if balance <= 0 || fraction <= 0 {
		return 0
	}
	return balance * fraction
}
