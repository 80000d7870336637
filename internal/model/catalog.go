package model

// CatalogRow is one raw scrip-master record as served by the broker.
// The full catalog is replaced wholesale on refresh, never patched.
//
// Strike arrives as a string encoded at x100 fixed point
// (e.g. "2400000.000000" for strike 24000).
type CatalogRow struct {
	Token          string `json:"token"`
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Expiry         string `json:"expiry"`
	Strike         string `json:"strike"`
	LotSize        string `json:"lotsize"`
	InstrumentType string `json:"instrumenttype"`
	ExchSeg        string `json:"exch_seg"`
	TickSize       string `json:"tick_size"`
}
