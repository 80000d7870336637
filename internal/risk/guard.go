package risk

import "fmt"

// Config defines daily P&L caps as percentages of the credential balance.
type Config struct {
	MaxLossPct   float64
	MaxProfitPct float64
}

// Reason explains a breach verdict.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonLossCapExceeded
	ReasonProfitTargetReached
)

func (r Reason) String() string {
	switch r {
	case ReasonLossCapExceeded:
		return "loss cap exceeded"
	case ReasonProfitTargetReached:
		return "profit target reached"
	default:
		return "none"
	}
}

// Verdict is the outcome of one evaluation. Breach drives close-then-
// deactivate in the lifecycle controller; it is an expected terminal
// condition for the day, not an error.
type Verdict struct {
	Breach    bool
	Reason    Reason
	MaxLoss   float64
	MaxProfit float64
}

// Guard evaluates realized+unrealized P&L against the daily caps.
type Guard struct {
	cfg Config
}

// NewGuard creates a guard with the given limits.
func NewGuard(cfg Config) Guard {
	return Guard{cfg: cfg}
}

// Evaluate recomputes the caps from the current balance on every call
// (balance may change intraday) and checks the day's P&L against them.
func (g Guard) Evaluate(pnl, balance float64) Verdict {
	maxLoss := balance / 100 * g.cfg.MaxLossPct
	maxProfit := balance / 100 * g.cfg.MaxProfitPct
	v := Verdict{MaxLoss: maxLoss, MaxProfit: maxProfit}

	if maxLoss <= 0 || maxProfit <= 0 {
		return v
	}

	switch {
	case pnl+maxLoss <= 0:
		v.Breach = true
		v.Reason = ReasonLossCapExceeded
	case pnl >= maxProfit:
		v.Breach = true
		v.Reason = ReasonProfitTargetReached
	}

	return v
}

// Describe renders a verdict for logging.
func (v Verdict) Describe(pnl float64) string {
	return fmt.Sprintf("pnl=%.2f maxLoss=%.2f maxProfit=%.2f breach=%v reason=%s",
		pnl, v.MaxLoss, v.MaxProfit, v.Breach, v.Reason)
}
