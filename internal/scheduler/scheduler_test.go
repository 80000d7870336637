package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"main/internal/broker"
	"main/internal/lifecycle"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/ops"
	"main/internal/scrip"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	levels      model.LevelSet
	levelsErr   error
	levelsGate  chan struct{} // when set, LevelsFor blocks until closed
	asset       model.Asset
	creds       []model.Credential
	admin       model.Credential
	saved       map[string]float64
	activeCalls int
}

func (s *fakeStore) ActiveCredentials(context.Context) ([]model.Credential, error) {
	s.activeCalls++
	return s.creds, nil
}

func (s *fakeStore) Credential(_ context.Context, id string) (model.Credential, error) {
	if s.admin.ID == id {
		return s.admin, nil
	}
	for _, cred := range s.creds {
		if cred.ID == id {
			return cred, nil
		}
	}
	return model.Credential{}, exception.ErrCredentialMissing
}

func (s *fakeStore) SaveBalance(_ context.Context, id string, balance float64) error {
	if s.saved == nil {
		s.saved = map[string]float64{}
	}
	s.saved[id] = balance
	return nil
}

func (s *fakeStore) LevelsFor(context.Context, time.Time) (model.LevelSet, error) {
	if s.levelsGate != nil {
		<-s.levelsGate
	}
	return s.levels, s.levelsErr
}

func (s *fakeStore) AssetFor(context.Context, time.Weekday) (model.Asset, error) {
	return s.asset, nil
}

type fakeMarket struct {
	candles   []model.Candle
	candleErr error
	ltp       float64
	funds     float64
	pnl       map[string]float64 // keyed by access token
	posErr    map[string]error
}

func (m *fakeMarket) PlaceOrder(context.Context, broker.Auth, broker.OrderRequest) (broker.OrderResponse, error) {
	return broker.OrderResponse{OrderID: "1"}, nil
}

func (m *fakeMarket) LTP(context.Context, broker.Auth, string, string, string) (float64, error) {
	return m.ltp, nil
}

func (m *fakeMarket) Positions(_ context.Context, auth broker.Auth) ([]broker.PositionPnL, error) {
	if err := m.posErr[auth.AccessToken]; err != nil {
		return nil, err
	}
	return []broker.PositionPnL{{Realized: m.pnl[auth.AccessToken]}}, nil
}

func (m *fakeMarket) Funds(context.Context, broker.Auth) (float64, error) {
	return m.funds, nil
}

func (m *fakeMarket) Candles(context.Context, broker.Auth, string, string, string, time.Time, time.Time) ([]model.Candle, error) {
	return m.candles, m.candleErr
}

type appliedEvent struct {
	CredID string
	Event  lifecycle.Event
}

type fakeApplier struct {
	events []appliedEvent
	errFor map[string]error
}

func (a *fakeApplier) Apply(_ context.Context, cred model.Credential, ev lifecycle.Event) (lifecycle.Outcome, error) {
	if err := a.errFor[cred.ID]; err != nil {
		return lifecycle.Outcome{}, err
	}
	a.events = append(a.events, appliedEvent{CredID: cred.ID, Event: ev})

	out := lifecycle.Outcome{}
	if ev.Kind == lifecycle.EventRiskBreach || ev.Kind == lifecycle.EventForcedClose {
		out.Deactivated = true
	}
	return out, nil
}

type fakeResolver struct {
	contract model.Contract
	err      error
}

func (r *fakeResolver) Resolve(string, int64, enum.OptionSide) (model.Contract, error) {
	return r.contract, r.err
}

func defaultCfg(t *testing.T) ops.Loaded {
	cfg, err := ops.Resolve(ops.FileConfig{})
	require.NoError(t, err)
	return cfg
}

// ist returns a wall-clock instant inside the 2025-09-23 trading day.
func ist(cfg ops.Loaded, hour, minute, sec int) time.Time {
	return time.Date(2025, 9, 23, hour, minute, sec, 0, cfg.Location)
}

func testLevels() model.LevelSet {
	return model.LevelSet{
		BC: 23800, TC: 24000,
		R1: 24200, R2: 24350, R3: 24600, R4: 24800,
		S1: 23600, S2: 23400, S3: 23200, S4: 23000,
		Buffer: 20,
	}
}

func newTestScheduler(t *testing.T, store *fakeStore, market *fakeMarket, trades *fakeApplier, resolver Resolver) (*Scheduler, ops.Loaded) {
	cfg := defaultCfg(t)
	s := New(cfg, store, market, trades, resolver)
	return s, cfg
}

func setClock(s *Scheduler, at time.Time) {
	s.now = func() time.Time { return at }
}

func TestPhaseTable(t *testing.T) {
	s, cfg := newTestScheduler(t, &fakeStore{}, &fakeMarket{}, &fakeApplier{}, &fakeResolver{})

	for _, tc := range []struct {
		hour, minute int
		want         enum.MarketPhase
	}{
		{0, 0, enum.PhaseClosed},
		{8, 29, enum.PhaseClosed},
		{8, 30, enum.PhasePreOpen},
		{9, 29, enum.PhasePreOpen},
		{9, 30, enum.PhaseActive},
		{15, 14, enum.PhaseActive},
		{15, 15, enum.PhaseForceFlat},
		{15, 29, enum.PhaseForceFlat},
		{15, 30, enum.PhaseClosed},
		{23, 59, enum.PhaseClosed},
	} {
		got := s.Phase(ist(cfg, tc.hour, tc.minute, 0))
		assert.Equal(t, tc.want, got, "%02d:%02d", tc.hour, tc.minute)
	}
}

func TestTickBusySkips(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeStore{levels: testLevels(), levelsGate: gate}
	s, cfg := newTestScheduler(t, store, &fakeMarket{}, &fakeApplier{}, &fakeResolver{})
	setClock(s, ist(cfg, 8, 45, 0))

	done := make(chan error, 1)
	go func() { done <- s.Tick(context.Background()) }()

	// Wait for the first tick to take the guard and park in LevelsFor.
	require.Eventually(t, func() bool { return s.busy.Load() }, time.Second, time.Millisecond)

	err := s.Tick(context.Background())
	assert.ErrorIs(t, err, exception.ErrTickBusy)

	close(gate)
	require.NoError(t, <-done)
}

func TestClosedPhaseDoesNothing(t *testing.T) {
	store := &fakeStore{}
	s, cfg := newTestScheduler(t, store, &fakeMarket{}, &fakeApplier{}, &fakeResolver{})
	setClock(s, ist(cfg, 7, 0, 0))

	require.NoError(t, s.Tick(context.Background()))
	assert.Zero(t, store.activeCalls)
}

func TestPreOpenWarmsContext(t *testing.T) {
	store := &fakeStore{
		levels: testLevels(),
		asset:  model.Asset{ID: "a1", Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1", Active: true}},
	}
	s, cfg := newTestScheduler(t, store, &fakeMarket{}, &fakeApplier{}, &fakeResolver{})
	setClock(s, ist(cfg, 8, 45, 0))

	require.NoError(t, s.Tick(context.Background()))
	assert.True(t, s.cycle.hasLevels)
	assert.True(t, s.cycle.hasAsset)
	assert.Len(t, s.cycle.creds, 1)
}

func TestCredentialRefreshCadence(t *testing.T) {
	store := &fakeStore{
		levels: testLevels(),
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1"}},
	}
	s, cfg := newTestScheduler(t, store, &fakeMarket{}, &fakeApplier{}, &fakeResolver{})

	setClock(s, ist(cfg, 8, 45, 0))
	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, 1, store.activeCalls)

	// Within the refresh window: no reload.
	setClock(s, ist(cfg, 8, 45, 30))
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 1, store.activeCalls)

	// Past the refresh window: reload.
	setClock(s, ist(cfg, 8, 45, 45))
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 2, store.activeCalls)
}

func TestOffCadenceSecondIsQuiet(t *testing.T) {
	store := &fakeStore{
		levels: testLevels(),
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1", Balance: 100000}},
	}
	market := &fakeMarket{candles: []model.Candle{{Open: 24040, Close: 24050}}}
	trades := &fakeApplier{}
	s, cfg := newTestScheduler(t, store, market, trades, &fakeResolver{})

	// Second 7 is not on the sampling cadence: no market calls, no events.
	setClock(s, ist(cfg, 10, 5, 7))
	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, trades.events)
}

func TestRiskRunsOffDecisionBoundary(t *testing.T) {
	store := &fakeStore{
		levels: testLevels(),
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1", Balance: 1000000}},
	}
	// Close inside the range: exit signal, but minute 7 is no decision
	// boundary, so only risk acts.
	market := &fakeMarket{
		candles: []model.Candle{{Open: 23910, Close: 23900}},
		pnl:     map[string]float64{"t1": -50000},
	}
	trades := &fakeApplier{}
	s, cfg := newTestScheduler(t, store, market, trades, &fakeResolver{})

	setClock(s, ist(cfg, 10, 7, 10))
	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, trades.events, 1)
	assert.Equal(t, lifecycle.EventRiskBreach, trades.events[0].Event.Kind)
	assert.Equal(t, "loss cap exceeded", trades.events[0].Event.Reason)

	// Deactivated credential left the cached set.
	assert.Empty(t, s.cycle.creds)
}

func TestExitSignalActsOnlyOnDecisionBoundary(t *testing.T) {
	store := &fakeStore{
		levels: testLevels(),
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1", Balance: 1000000}},
	}
	market := &fakeMarket{
		candles: []model.Candle{{Open: 23910, Close: 23900}},
		pnl:     map[string]float64{"t1": 0},
	}
	trades := &fakeApplier{}
	s, cfg := newTestScheduler(t, store, market, trades, &fakeResolver{})

	// Minute 7, second 10: evaluation tick, not a decision boundary.
	setClock(s, ist(cfg, 10, 7, 10))
	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, trades.events)

	// Minute 10, second 0: decision boundary.
	setClock(s, ist(cfg, 10, 10, 0))
	require.NoError(t, s.Tick(context.Background()))
	require.Len(t, trades.events, 1)
	assert.Equal(t, lifecycle.EventExit, trades.events[0].Event.Kind)
}

// The full entry path: price 24050 sits in the TC+buffer band (tc=24000,
// buffer=20 fails; use tc=24040) — here levels put the close in the band,
// the strike lands 400 out of the money and the nearest expiry wins.
func TestEndToEndEntry(t *testing.T) {
	levels := testLevels()
	levels.TC = 24040 // close 24050 inside [24040, 24060]

	store := &fakeStore{
		levels: levels,
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1", Balance: 1000000}},
	}
	market := &fakeMarket{
		candles: []model.Candle{{Open: 24020, Close: 24050}},
		ltp:     129.55,
		pnl:     map[string]float64{"t1": 0},
	}
	trades := &fakeApplier{}

	catalog := scrip.NewCatalog()
	catalog.Replace([]model.CatalogRow{
		{Token: "51234", Symbol: "NIFTY23SEP2524500CE", Name: "NIFTY", Expiry: "23SEP2025", Strike: "2450000.000000", LotSize: "75", InstrumentType: "OPTIDX", ExchSeg: "NFO"},
		{Token: "51999", Symbol: "NIFTY30SEP2524500CE", Name: "NIFTY", Expiry: "30SEP2025", Strike: "2450000.000000", LotSize: "75", InstrumentType: "OPTIDX", ExchSeg: "NFO"},
		{Token: "60001", Symbol: "BANKNIFTY23SEP2524500CE", Name: "BANKNIFTY", Expiry: "23SEP2025", Strike: "2450000.000000", LotSize: "15", InstrumentType: "OPTIDX", ExchSeg: "NFO"},
	})

	s, cfg := newTestScheduler(t, store, market, trades, catalog)
	setClock(s, ist(cfg, 10, 5, 0))
	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, trades.events, 1)
	ev := trades.events[0].Event
	assert.Equal(t, lifecycle.EventEnter, ev.Kind)
	assert.Equal(t, enum.OptionSideCE, ev.Side)
	assert.Equal(t, "NIFTY23SEP2524500CE", ev.Contract.TradingSymbol)
	assert.Equal(t, "51234", ev.Contract.Token)

	// 10% of 1,000,000 usable; 129.55 * 75 per lot -> 10 lots.
	assert.Equal(t, int64(750), ev.Quantity)
}

func TestUnresolvableContractSkipsEntry(t *testing.T) {
	levels := testLevels()
	levels.TC = 24040

	store := &fakeStore{
		levels: levels,
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1", Balance: 1000000}},
	}
	market := &fakeMarket{
		candles: []model.Candle{{Open: 24020, Close: 24050}},
		ltp:     129.55,
		pnl:     map[string]float64{"t1": 0},
	}
	trades := &fakeApplier{}
	s, cfg := newTestScheduler(t, store, market, trades, &fakeResolver{err: exception.ErrScripNotFound})

	setClock(s, ist(cfg, 10, 5, 0))
	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, trades.events)
}

func TestBalanceFallbackQueriesFunds(t *testing.T) {
	store := &fakeStore{
		levels: testLevels(),
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1", Balance: 0}},
	}
	market := &fakeMarket{
		candles: []model.Candle{{Open: 24500, Close: 24500}},
		funds:   250000,
		pnl:     map[string]float64{"t1": 0},
	}
	s, cfg := newTestScheduler(t, store, market, &fakeApplier{}, &fakeResolver{})

	setClock(s, ist(cfg, 10, 5, 10))
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 250000.0, store.saved["k1"])
}

func TestCredentialErrorIsolation(t *testing.T) {
	store := &fakeStore{
		levels: testLevels(),
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds: []model.Credential{
			{ID: "k1", AccessToken: "t1", Balance: 100000},
			{ID: "k2", AccessToken: "t2", Balance: 100000},
		},
	}
	market := &fakeMarket{
		candles: []model.Candle{{Open: 23910, Close: 23900}},
		pnl:     map[string]float64{"t2": 0},
		posErr:  map[string]error{"t1": fmt.Errorf("session expired")},
	}
	trades := &fakeApplier{}
	s, cfg := newTestScheduler(t, store, market, trades, &fakeResolver{})

	setClock(s, ist(cfg, 10, 5, 0))
	require.NoError(t, s.Tick(context.Background()))

	// k1 failed and was contained; k2 still got its exit decision.
	require.Len(t, trades.events, 1)
	assert.Equal(t, "k2", trades.events[0].CredID)
}

func TestForceFlatFiresOnce(t *testing.T) {
	store := &fakeStore{
		creds: []model.Credential{
			{ID: "k1", AccessToken: "t1"},
			{ID: "k2", AccessToken: "t2"},
		},
	}
	trades := &fakeApplier{}
	s, cfg := newTestScheduler(t, store, &fakeMarket{}, trades, &fakeResolver{})

	setClock(s, ist(cfg, 15, 15, 0))
	require.NoError(t, s.Tick(context.Background()))
	require.Len(t, trades.events, 2)
	assert.Equal(t, lifecycle.EventForcedClose, trades.events[0].Event.Kind)

	// Second tick inside the force-flat window: nothing more.
	setClock(s, ist(cfg, 15, 15, 1))
	require.NoError(t, s.Tick(context.Background()))
	assert.Len(t, trades.events, 2)
}

func TestForceFlatRetriesFailedClose(t *testing.T) {
	store := &fakeStore{
		creds: []model.Credential{
			{ID: "k1", AccessToken: "t1"},
			{ID: "k2", AccessToken: "t2"},
		},
	}
	trades := &fakeApplier{errFor: map[string]error{"k1": fmt.Errorf("broker down")}}
	s, cfg := newTestScheduler(t, store, &fakeMarket{}, trades, &fakeResolver{})

	setClock(s, ist(cfg, 15, 15, 0))
	require.NoError(t, s.Tick(context.Background()))
	require.Len(t, trades.events, 1) // only k2 went through

	// k1 recovers; the window retries until every close lands.
	trades.errFor = nil
	setClock(s, ist(cfg, 15, 15, 1))
	require.NoError(t, s.Tick(context.Background()))
	assert.Len(t, trades.events, 3)

	setClock(s, ist(cfg, 15, 15, 2))
	require.NoError(t, s.Tick(context.Background()))
	assert.Len(t, trades.events, 3)
}

func TestDayRotationResetsCycle(t *testing.T) {
	store := &fakeStore{
		levels: testLevels(),
		asset:  model.Asset{Name: "NIFTY", Token: "99926000"},
		creds:  []model.Credential{{ID: "k1", AccessToken: "t1"}},
	}
	s, cfg := newTestScheduler(t, store, &fakeMarket{}, &fakeApplier{}, &fakeResolver{})

	setClock(s, ist(cfg, 8, 45, 0))
	require.NoError(t, s.Tick(context.Background()))
	require.True(t, s.cycle.hasLevels)

	// Next day, before pre-open: the context is gone.
	s.now = func() time.Time { return time.Date(2025, 9, 24, 7, 0, 0, 0, cfg.Location) }
	require.NoError(t, s.Tick(context.Background()))
	assert.False(t, s.cycle.hasLevels)
	assert.Empty(t, s.cycle.creds)
}

func TestForceCloseByID(t *testing.T) {
	store := &fakeStore{
		creds: []model.Credential{
			{ID: "k1", AccessToken: "t1"},
			{ID: "k2", AccessToken: "t2"},
		},
	}
	trades := &fakeApplier{}
	s, _ := newTestScheduler(t, store, &fakeMarket{}, trades, &fakeResolver{})

	require.NoError(t, s.ForceClose(context.Background(), "k2"))
	require.Len(t, trades.events, 1)
	assert.Equal(t, "k2", trades.events[0].CredID)
	assert.Equal(t, lifecycle.EventForcedClose, trades.events[0].Event.Kind)

	assert.ErrorIs(t, s.ForceClose(context.Background(), "missing"), exception.ErrCredentialMissing)
}

func TestForceCloseAll(t *testing.T) {
	store := &fakeStore{
		creds: []model.Credential{
			{ID: "k1", AccessToken: "t1"},
			{ID: "k2", AccessToken: "t2"},
		},
	}
	trades := &fakeApplier{}
	s, _ := newTestScheduler(t, store, &fakeMarket{}, trades, &fakeResolver{})

	require.NoError(t, s.ForceClose(context.Background(), ""))
	assert.Len(t, trades.events, 2)
}
