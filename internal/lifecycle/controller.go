package lifecycle

import (
	"context"

	"main/internal/broker"
	"main/internal/errors"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

// EventKind drives one credential's position lifecycle.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventEnter
	EventExit
	EventDirectionalExit
	EventRiskBreach
	EventForcedClose
)

// Event is one decision handed to the controller for a single credential in
// a single tick.
type Event struct {
	Kind     EventKind
	Side     enum.OptionSide // Enter / DirectionalExit
	Contract model.Contract  // Enter
	Quantity int64           // Enter
	Reason   string
}

// Outcome reports what a transition actually did. OrdersPlaced counts
// confirmed submissions only.
type Outcome struct {
	OrdersPlaced int
	Entered      bool
	Exited       bool
	Deactivated  bool
}

// OrderPlacer is the slice of the broker gateway the controller needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, auth broker.Auth, req broker.OrderRequest) (broker.OrderResponse, error)
}

// TradeStore persists position lifecycle records. A credential with no
// entry-state record is flat.
type TradeStore interface {
	OpenPosition(ctx context.Context, credentialID string) (model.Position, bool, error)
	RecordEntry(ctx context.Context, pos model.Position) error
	MarkExit(ctx context.Context, positionID string) error
	Deactivate(ctx context.Context, credentialID string) error
}

// Controller executes lifecycle transitions. Each Apply call acts on at
// most one decision; order outcomes are recorded before a transition is
// considered complete, so recorded state never runs ahead of an order the
// broker did not confirm.
type Controller struct {
	gateway OrderPlacer
	store   TradeStore
}

// NewController wires the controller to its collaborators.
func NewController(gateway OrderPlacer, store TradeStore) *Controller {
	return &Controller{gateway: gateway, store: store}
}

// Apply runs one event against one credential's current position state.
func (c *Controller) Apply(ctx context.Context, cred model.Credential, ev Event) (Outcome, error) {
	pos, open, err := c.store.OpenPosition(ctx, cred.ID)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "load open position")
	}

	switch ev.Kind {
	case EventEnter:
		return c.enter(ctx, cred, pos, open, ev)
	case EventExit:
		if !open {
			return Outcome{}, nil
		}
		return c.close(ctx, cred, pos)
	case EventDirectionalExit:
		// Scoped: only a position held in the crossed direction closes.
		if !open || pos.Side != ev.Side {
			return Outcome{}, nil
		}
		return c.close(ctx, cred, pos)
	case EventRiskBreach:
		return c.closeAndDeactivate(ctx, cred, pos, open, ev.Reason)
	case EventForcedClose:
		return c.closeAndDeactivate(ctx, cred, pos, open, "hard cutoff")
	default:
		return Outcome{}, exception.ErrOrderInvalidRequest
	}
}

// enter opens a fresh position, or flips an opposite-direction one. The
// flip is two separate submissions with close-before-open ordering; when
// the close fails the open is not attempted.
func (c *Controller) enter(ctx context.Context, cred model.Credential, pos model.Position, open bool, ev Event) (Outcome, error) {
	if !ev.Contract.Valid() || ev.Quantity <= 0 || !ev.Side.IsAvailable() {
		return Outcome{}, exception.ErrOrderInvalidRequest
	}

	var out Outcome
	if open {
		if pos.Side == ev.Side {
			// Already positioned in this direction.
			return Outcome{}, nil
		}

		closed, err := c.close(ctx, cred, pos)
		out.OrdersPlaced += closed.OrdersPlaced
		out.Exited = closed.Exited
		if err != nil {
			return out, errors.Wrap(exception.ErrOrderCloseFailed, err.Error())
		}
	}

	req := broker.OrderRequestFor(ev.Contract, enum.OrderSideBuy, ev.Quantity)
	if _, err := c.gateway.PlaceOrder(ctx, broker.AuthFor(cred), req); err != nil {
		return out, errors.Wrap(err, "place entry order")
	}
	out.OrdersPlaced++
	obs.OrderPlaced(enum.OrderSideBuy.String())

	entry := model.Position{
		CredentialID: cred.ID,
		Contract:     ev.Contract,
		Side:         ev.Side,
		Quantity:     ev.Quantity,
		State:        enum.PositionStateEntry,
	}
	if err := c.store.RecordEntry(ctx, entry); err != nil {
		// The order went out but the record did not land; surface loudly so
		// the operator reconciles before the next decision acts on stale
		// flat state.
		return out, errors.Wrap(err, "record entry")
	}
	out.Entered = true

	logs.Infof("entered %s %s qty=%d credential=%s", ev.Side, ev.Contract.TradingSymbol, ev.Quantity, cred.ID)
	return out, nil
}

// close sells the open position at market and marks the record exited.
func (c *Controller) close(ctx context.Context, cred model.Credential, pos model.Position) (Outcome, error) {
	req := broker.OrderRequestFor(pos.Contract, enum.OrderSideSell, pos.Quantity)
	if _, err := c.gateway.PlaceOrder(ctx, broker.AuthFor(cred), req); err != nil {
		return Outcome{}, errors.Wrap(err, "place exit order")
	}
	obs.OrderPlaced(enum.OrderSideSell.String())

	if err := c.store.MarkExit(ctx, pos.ID); err != nil {
		return Outcome{OrdersPlaced: 1}, errors.Wrap(err, "mark exit")
	}

	logs.Infof("exited %s %s qty=%d credential=%s", pos.Side, pos.Contract.TradingSymbol, pos.Quantity, cred.ID)
	return Outcome{OrdersPlaced: 1, Exited: true}, nil
}

// closeAndDeactivate handles RiskBreach and ForcedClose: at most one SELL,
// then the credential is deactivated for the day. Deactivation only happens
// once the close (if any) is confirmed.
func (c *Controller) closeAndDeactivate(ctx context.Context, cred model.Credential, pos model.Position, open bool, reason string) (Outcome, error) {
	var out Outcome
	if open {
		closed, err := c.close(ctx, cred, pos)
		out.OrdersPlaced += closed.OrdersPlaced
		out.Exited = closed.Exited
		if err != nil {
			return out, err
		}
	}

	if err := c.store.Deactivate(ctx, cred.ID); err != nil {
		return out, errors.Wrap(err, "deactivate credential")
	}
	out.Deactivated = true
	obs.CredentialDeactivated(reason)

	logs.Infof("credential %s deactivated, reason: %s", cred.ID, reason)
	return out, nil
}
