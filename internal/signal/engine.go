package signal

import (
	"fmt"
	"math"

	"main/internal/model"
	"main/internal/model/enum"
)

// Config tunes rule precedence and strike selection. The precedence among
// simultaneously-true rules is deliberately configurable; the defaults keep
// secondary bands overriding the primary TC/BC check and crossover exits
// enabled.
type Config struct {
	SecondaryOverride bool
	CrossoverExit     bool
	StrikeStep        int64
	StrikeOffset      int64
}

// DefaultConfig returns the standard rule ordering.
func DefaultConfig() Config {
	return Config{
		SecondaryOverride: true,
		CrossoverExit:     true,
		StrikeStep:        100,
		StrikeOffset:      400,
	}
}

// Engine derives trading signals from pivot levels. It is a pure function
// of its inputs and holds no state between samples.
type Engine struct {
	cfg Config
}

// New creates a signal engine.
func New(cfg Config) Engine {
	if cfg.StrikeStep <= 0 {
		cfg.StrikeStep = 100
	}
	return Engine{cfg: cfg}
}

// Derive evaluates the rule set against the current sample's close, using
// the previous sample only for crossover detection.
//
// Rule order: TC/BC buffer bands, inside-range exit, secondary level bands
// (override when enabled), then crossover exits when nothing else fired.
func (e Engine) Derive(prev, curr model.Candle, levels model.LevelSet) model.Signal {
	price := curr.Close
	out := model.Signal{Kind: enum.SignalNone}

	switch {
	case price >= levels.TC && price <= levels.TC+levels.Buffer:
		out = model.Signal{Kind: enum.SignalBuy, Side: enum.OptionSideCE, Reason: "breakout above top-of-range"}
	case price <= levels.BC && price >= levels.BC-levels.Buffer:
		out = model.Signal{Kind: enum.SignalSell, Side: enum.OptionSidePE, Reason: "breakdown below bottom-of-range"}
	case price > levels.BC && price < levels.TC:
		out = model.Signal{Kind: enum.SignalExit, Reason: "inside central range"}
	}

	if e.cfg.SecondaryOverride {
		for i, level := range levels.Secondary() {
			if level <= 0 {
				continue
			}
			if price > level && price <= level+levels.Buffer {
				out = model.Signal{Kind: enum.SignalBuy, Side: enum.OptionSideCE, Reason: fmt.Sprintf("entered buffer above secondary level %d", i+1)}
			} else if price < level && price >= level-levels.Buffer {
				out = model.Signal{Kind: enum.SignalSell, Side: enum.OptionSidePE, Reason: fmt.Sprintf("entered buffer below secondary level %d", i+1)}
			}
		}
	}

	if e.cfg.CrossoverExit && out.None() {
		if sig, ok := crossoverExit(prev, curr, levels); ok {
			out = sig
		}
	}

	return out
}

// crossoverExit detects a strict open/close cross of any level within the
// current sample. An upward cross closes a held PE, a downward cross closes
// a held CE; holders of the other side are untouched. The first sample of
// the day never fires: without a previous sample the cross cannot be
// confirmed as fresh.
func crossoverExit(prev, curr model.Candle, levels model.LevelSet) (model.Signal, bool) {
	if prev.Zero() {
		return model.Signal{}, false
	}

	for _, level := range levels.All() {
		if level <= 0 {
			continue
		}
		if curr.Open < level && curr.Close > level {
			return model.Signal{Kind: enum.SignalDirectionalExit, Side: enum.OptionSidePE, Reason: "crossed above level"}, true
		}
		if curr.Open > level && curr.Close < level {
			return model.Signal{Kind: enum.SignalDirectionalExit, Side: enum.OptionSideCE, Reason: "crossed below level"}, true
		}
	}

	return model.Signal{}, false
}

// Strike selects the target strike for a direction: the price rounded to
// the nearest step (the midpoint rounds up), shifted a fixed offset away
// from the money.
func (e Engine) Strike(price float64, side enum.OptionSide) int64 {
	step := e.cfg.StrikeStep
	base := int64(price/float64(step)) * step
	if math.Mod(price, float64(step)) >= float64(step)/2 {
		base += step
	}

	switch side {
	case enum.OptionSideCE:
		return base + e.cfg.StrikeOffset
	case enum.OptionSidePE:
		return base - e.cfg.StrikeOffset
	default:
		return base
	}
}
