package angel

import "github.com/yanun0323/decimal"

type response[T any] struct {
	Status    bool   `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorcode"`
	Data      T      `json:"data"`
}

type responsePlaceOrder struct {
	Script        string `json:"script"`
	OrderID       string `json:"orderid"`
	UniqueOrderID string `json:"uniqueorderid"`
}

type responseLTP struct {
	Exchange      string  `json:"exchange"`
	TradingSymbol string  `json:"tradingsymbol"`
	SymbolToken   string  `json:"symboltoken"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	LTP           float64 `json:"ltp"`
}

// The position book and RMS endpoints serve money amounts as JSON strings.
type responsePosition struct {
	TradingSymbol string          `json:"tradingsymbol"`
	ProductType   string          `json:"producttype"`
	Realised      decimal.Decimal `json:"realised"`
	Unrealised    decimal.Decimal `json:"unrealised"`
	NetQty        string          `json:"netqty"`
}

type responseRMS struct {
	Net           decimal.Decimal `json:"net"`
	AvailableCash decimal.Decimal `json:"availablecash"`
}
