package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"main/internal/broker"
	"main/internal/errors"
	"main/internal/lifecycle"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/risk"
	"main/internal/signal"
	"main/internal/sizing"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

// Store is the persistence surface the scheduler reads its cycle context
// from.
type Store interface {
	ActiveCredentials(ctx context.Context) ([]model.Credential, error)
	Credential(ctx context.Context, id string) (model.Credential, error)
	SaveBalance(ctx context.Context, id string, balance float64) error
	LevelsFor(ctx context.Context, day time.Time) (model.LevelSet, error)
	AssetFor(ctx context.Context, weekday time.Weekday) (model.Asset, error)
}

// Applier executes one lifecycle transition for one credential.
type Applier interface {
	Apply(ctx context.Context, cred model.Credential, ev lifecycle.Event) (lifecycle.Outcome, error)
}

// Resolver maps (underlying, strike, side) to a tradable contract.
type Resolver interface {
	Resolve(underlying string, strike int64, side enum.OptionSide) (model.Contract, error)
}

// dayContext is the per-trading-day state. Levels, asset and the admin
// market-data credential load lazily and stay immutable for the day;
// credentials refresh on a short cadence to pick up rotated tokens.
type dayContext struct {
	date string

	levels    model.LevelSet
	hasLevels bool

	asset    model.Asset
	hasAsset bool

	admin    model.Credential
	hasAdmin bool

	creds   []model.Credential
	credsAt time.Time

	prev       model.Candle
	forcedFlat bool
}

// Scheduler drives the engine off a one-second ticker. Ticks never queue:
// a tick that arrives while the previous one still runs is dropped.
type Scheduler struct {
	cfg      ops.Loaded
	store    Store
	market   broker.Gateway
	trades   Applier
	resolver Resolver
	engine   signal.Engine
	guard    risk.Guard

	now     func() time.Time
	running atomic.Bool
	busy    atomic.Bool

	cycle dayContext
}

func New(cfg ops.Loaded, store Store, market broker.Gateway, trades Applier, resolver Resolver) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		market:   market,
		trades:   trades,
		resolver: resolver,
		engine: signal.New(signal.Config{
			SecondaryOverride: cfg.SecondaryOverride,
			CrossoverExit:     cfg.CrossoverExit,
			StrikeStep:        cfg.StrikeStep,
			StrikeOffset:      cfg.StrikeOffset,
		}),
		guard: risk.NewGuard(risk.Config{
			MaxLossPct:   cfg.MaxLossPct,
			MaxProfitPct: cfg.MaxProfitPct,
		}),
		now: time.Now,
	}
}

// Run ticks every second until the context is done.
func (s *Scheduler) Run(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil && !errors.Is(err, exception.ErrTickBusy) {
				logs.Errorf("tick failed, err: %+v", err)
			}
		}
	}
}

// Phase maps a wall-clock instant onto the trading-day phase table.
func (s *Scheduler) Phase(t time.Time) enum.MarketPhase {
	m := ops.ClockTime(t.Hour()*60 + t.Minute())
	switch {
	case m < s.cfg.PreOpen || m >= s.cfg.Close:
		return enum.PhaseClosed
	case m < s.cfg.Open:
		return enum.PhasePreOpen
	case m < s.cfg.Cutoff:
		return enum.PhaseActive
	default:
		return enum.PhaseForceFlat
	}
}

// Tick runs one scheduler cycle. Single-flight: a tick arriving while the
// previous one runs is skipped, never queued.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.busy.Swap(true) {
		obs.TickSkipped()
		return exception.ErrTickBusy
	}
	defer s.busy.Store(false)

	now := s.now().In(s.cfg.Location)
	s.rotateDay(now)

	switch s.Phase(now) {
	case enum.PhasePreOpen:
		return s.warm(ctx, now)
	case enum.PhaseActive:
		return s.active(ctx, now)
	case enum.PhaseForceFlat:
		return s.forceFlat(ctx)
	default:
		return nil
	}
}

// ForceClose closes and deactivates one credential (or all active ones when
// id is empty) outside the tick cadence. It contends for the same busy
// guard as Tick, so a cycle is never interleaved with a forced close.
func (s *Scheduler) ForceClose(ctx context.Context, credentialID string) error {
	if s.busy.Swap(true) {
		return exception.ErrTickBusy
	}
	defer s.busy.Store(false)

	if len(credentialID) != 0 {
		cred, err := s.store.Credential(ctx, credentialID)
		if err != nil {
			return err
		}
		_, err = s.trades.Apply(ctx, cred, lifecycle.Event{Kind: lifecycle.EventForcedClose, Reason: "operator stop"})
		return err
	}

	creds, err := s.store.ActiveCredentials(ctx)
	if err != nil {
		return errors.Wrap(err, "list credentials for forced close")
	}
	for _, cred := range creds {
		if _, err := s.trades.Apply(ctx, cred, lifecycle.Event{Kind: lifecycle.EventForcedClose, Reason: "operator stop"}); err != nil {
			logs.Errorf("forced close failed, credential: %s, err: %+v", cred.ID, err)
			obs.CredentialError()
		}
	}
	return nil
}

// rotateDay resets the cycle context when the trading date changes.
func (s *Scheduler) rotateDay(now time.Time) {
	date := now.Format(time.DateOnly)
	if s.cycle.date != date {
		s.cycle = dayContext{date: date}
	}
}

// warm refreshes the cycle context: daily levels and asset load once and
// stay fixed for the day, credentials (and the admin market-data token)
// reload on the refresh cadence. A failure aborts only this tick.
func (s *Scheduler) warm(ctx context.Context, now time.Time) error {
	if !s.cycle.hasLevels {
		levels, err := s.store.LevelsFor(ctx, now)
		if err != nil {
			return errors.Wrap(err, "load daily levels")
		}
		s.cycle.levels = levels
		s.cycle.hasLevels = true
		logs.Infof("daily levels loaded, tc=%.2f bc=%.2f buffer=%.2f", levels.TC, levels.BC, levels.Buffer)
	}

	if !s.cycle.hasAsset {
		asset, err := s.store.AssetFor(ctx, now.Weekday())
		if err != nil {
			return errors.Wrap(err, "load daily asset")
		}
		s.cycle.asset = asset
		s.cycle.hasAsset = true
		logs.Infof("daily asset: %s (token %s)", asset.Name, asset.Token)
	}

	if s.cycle.credsAt.IsZero() || now.Sub(s.cycle.credsAt) >= s.cfg.CredentialRefresh {
		creds, err := s.store.ActiveCredentials(ctx)
		if err != nil {
			return errors.Wrap(err, "refresh credentials")
		}
		s.cycle.creds = creds
		s.cycle.credsAt = now

		if len(s.cfg.AdminCredentialID) != 0 {
			admin, err := s.store.Credential(ctx, s.cfg.AdminCredentialID)
			if err != nil {
				return errors.Wrap(err, "load admin credential")
			}
			s.cycle.admin = admin
			s.cycle.hasAdmin = true
		}
	}

	return nil
}

// adminAuth picks the market-data credential: the configured admin key, or
// the first active credential when none is configured.
func (s *Scheduler) adminAuth() (broker.Auth, bool) {
	if s.cycle.hasAdmin {
		return broker.AuthFor(s.cycle.admin), true
	}
	if len(s.cycle.creds) != 0 {
		return broker.AuthFor(s.cycle.creds[0]), true
	}
	return broker.Auth{}, false
}

// active runs one in-session cycle: sample the market on the evaluation
// cadence, derive a signal, then walk every credential. Risk runs on every
// evaluation tick; entries and exits act only on the decision boundary.
func (s *Scheduler) active(ctx context.Context, now time.Time) error {
	if err := s.warm(ctx, now); err != nil {
		return err
	}

	evalSec := int(s.cfg.DecisionWindow / time.Second)
	if evalSec <= 0 || now.Second()%evalSec != 0 {
		return nil
	}

	auth, ok := s.adminAuth()
	if !ok {
		return exception.ErrCredentialMissing
	}

	candles, err := s.market.Candles(ctx, auth, "NSE", s.cycle.asset.Token, s.cfg.CandleInterval, now.Add(-s.cfg.CandleLookback), now)
	if err != nil {
		return errors.Wrap(err, "fetch candles")
	}
	if len(candles) == 0 {
		return exception.ErrNoPrice
	}

	curr := candles[len(candles)-1]
	prev := s.cycle.prev
	if len(candles) >= 2 {
		prev = candles[len(candles)-2]
	}

	sig := s.engine.Derive(prev, curr, s.cycle.levels)
	s.cycle.prev = curr
	obs.Decision(sig.Kind.String())
	logs.Infof("sample close=%.2f signal=%s side=%s reason=%s", curr.Close, sig.Kind, sig.Side, sig.Reason)

	// Resolve the target contract once per cycle; every credential trades
	// the same instrument.
	var contract model.Contract
	resolved := false
	if sig.Kind.Directional() {
		strike := s.engine.Strike(curr.Close, sig.Side)
		contract, err = s.resolver.Resolve(s.cycle.asset.Name, strike, sig.Side)
		switch {
		case errors.Is(err, exception.ErrScripNotFound), errors.Is(err, exception.ErrScripEmptyCatalog):
			logs.Errorf("no contract for %s %d %s, entries skipped this cycle", s.cycle.asset.Name, strike, sig.Side)
		case err != nil:
			return errors.Wrap(err, "resolve contract")
		default:
			resolved = true
		}
	}

	intervalMin := int(s.cfg.DecisionInterval / time.Minute)
	if intervalMin <= 0 {
		intervalMin = 1
	}
	decide := now.Second() < evalSec && now.Minute()%intervalMin == 0

	kept := s.cycle.creds[:0]
	for _, cred := range s.cycle.creds {
		deactivated, err := s.evalCredential(ctx, cred, sig, contract, resolved, decide)
		if err != nil {
			logs.Errorf("credential cycle failed, credential: %s, signal: %s, err: %+v", cred.ID, sig.Kind, err)
			obs.CredentialError()
		}
		if !deactivated {
			kept = append(kept, cred)
		}
	}
	s.cycle.creds = kept

	return nil
}

// evalCredential runs risk and (on decision boundaries) the signal action
// for one credential. Errors here never stop the credential loop.
func (s *Scheduler) evalCredential(ctx context.Context, cred model.Credential, sig model.Signal, contract model.Contract, resolved, decide bool) (deactivated bool, err error) {
	auth := broker.AuthFor(cred)

	balance := cred.Balance
	if balance <= 0 {
		balance, err = s.market.Funds(ctx, auth)
		if err != nil {
			return false, errors.Wrap(err, "query funds")
		}
		if err := s.store.SaveBalance(ctx, cred.ID, balance); err != nil {
			logs.Errorf("save balance failed, credential: %s, err: %+v", cred.ID, err)
		}
	}

	book, err := s.market.Positions(ctx, auth)
	if err != nil {
		return false, errors.Wrap(err, "query positions")
	}
	pnl := broker.DayPnL(book)
	obs.SetDayPnL(pnl)

	if verdict := s.guard.Evaluate(pnl, balance); verdict.Breach {
		logs.Infof("risk breach, credential: %s, %s", cred.ID, verdict.Describe(pnl))
		out, err := s.trades.Apply(ctx, cred, lifecycle.Event{Kind: lifecycle.EventRiskBreach, Reason: verdict.Reason.String()})
		if err != nil {
			return false, errors.Wrap(err, "apply risk breach")
		}
		return out.Deactivated, nil
	}

	if !decide || sig.None() {
		return false, nil
	}

	switch sig.Kind {
	case enum.SignalExit:
		_, err := s.trades.Apply(ctx, cred, lifecycle.Event{Kind: lifecycle.EventExit, Reason: sig.Reason})
		return false, err

	case enum.SignalDirectionalExit:
		_, err := s.trades.Apply(ctx, cred, lifecycle.Event{Kind: lifecycle.EventDirectionalExit, Side: sig.Side, Reason: sig.Reason})
		return false, err

	case enum.SignalBuy, enum.SignalSell:
		if !resolved {
			return false, nil
		}

		ltp, err := s.market.LTP(ctx, auth, contract.Exchange, contract.TradingSymbol, contract.Token)
		if err != nil {
			return false, errors.Wrap(err, "query ltp")
		}

		qty := sizing.Quantity(sizing.Usable(balance, s.cfg.CapitalFraction), ltp, contract.LotSize)
		if qty <= 0 {
			logs.Infof("cannot size entry, credential: %s, balance=%.2f ltp=%.2f lot=%d", cred.ID, balance, ltp, contract.LotSize)
			return false, nil
		}

		_, err = s.trades.Apply(ctx, cred, lifecycle.Event{
			Kind:     lifecycle.EventEnter,
			Side:     sig.Side,
			Contract: contract,
			Quantity: qty,
			Reason:   sig.Reason,
		})
		return false, err
	}

	return false, nil
}

// forceFlat closes everything once the hard cutoff hits. The active set is
// re-read from the store so a failed close is retried on the next tick.
func (s *Scheduler) forceFlat(ctx context.Context) error {
	if s.cycle.forcedFlat {
		return nil
	}

	creds, err := s.store.ActiveCredentials(ctx)
	if err != nil {
		return errors.Wrap(err, "list credentials for hard cutoff")
	}

	clean := true
	for _, cred := range creds {
		if _, err := s.trades.Apply(ctx, cred, lifecycle.Event{Kind: lifecycle.EventForcedClose, Reason: "hard cutoff"}); err != nil {
			logs.Errorf("forced close failed, credential: %s, err: %+v", cred.ID, err)
			obs.CredentialError()
			clean = false
		}
	}

	s.cycle.forcedFlat = clean
	if clean {
		s.cycle.creds = nil
		logs.Info("hard cutoff: all credentials flat and parked")
	}
	return nil
}
