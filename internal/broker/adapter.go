package broker

import (
	"context"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// Auth carries one credential's broker session.
type Auth struct {
	AccessToken string
	APIKey      string
}

// AuthFor builds an Auth from a credential record.
func AuthFor(cred model.Credential) Auth {
	return Auth{AccessToken: cred.AccessToken, APIKey: cred.APIKey}
}

// OrderRequest is a market intraday order for one contract.
type OrderRequest struct {
	Exchange      string
	TradingSymbol string
	Token         string
	Side          enum.OrderSide
	Quantity      int64
}

// OrderRequestFor routes an order against a resolved contract.
func OrderRequestFor(contract model.Contract, side enum.OrderSide, qty int64) OrderRequest {
	return OrderRequest{
		Exchange:      contract.Exchange,
		TradingSymbol: contract.TradingSymbol,
		Token:         contract.Token,
		Side:          side,
		Quantity:      qty,
	}
}

// OrderResponse is the broker's acknowledgment of a placed order.
type OrderResponse struct {
	OrderID string
}

// PositionPnL is one row of the broker's position book.
type PositionPnL struct {
	Realized    float64
	Unrealized  float64
	ProductType string
}

// Gateway is the broker-side collaborator surface the engine consumes.
// Every call is an asynchronous I/O suspension point; implementations must
// honor the context deadline.
type Gateway interface {
	PlaceOrder(ctx context.Context, auth Auth, req OrderRequest) (OrderResponse, error)
	LTP(ctx context.Context, auth Auth, exchange, tradingSymbol, token string) (float64, error)
	Positions(ctx context.Context, auth Auth) ([]PositionPnL, error)
	Funds(ctx context.Context, auth Auth) (float64, error)
	Candles(ctx context.Context, auth Auth, exchange, token, interval string, from, to time.Time) ([]model.Candle, error)
}

// DayPnL folds a position book into the day's total P&L.
func DayPnL(rows []PositionPnL) float64 {
	var total float64
	for _, row := range rows {
		total += row.Realized + row.Unrealized
	}
	return total
}
