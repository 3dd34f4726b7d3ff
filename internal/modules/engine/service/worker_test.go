package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tick_trader/internal/ledger"
	"tick_trader/internal/models"
	"tick_trader/internal/modules/config"
	gw "tick_trader/internal/modules/gateway/service"
)

// scriptedGen отдаёт действия по заранее заданному сценарию, по одному на
// вызов; дальше — HOLD. lastEntrySeen копит кулдаун-клок, который видел
// генератор.
type scriptedGen struct {
	actions       []models.Action
	i             int
	lastEntrySeen []int64
}

func (s *scriptedGen) Evaluate(snap models.IndicatorSnapshot, p models.CoinParams, nowMs, lastEntryMs int64, openCount int) models.Signal {
	s.lastEntrySeen = append(s.lastEntrySeen, lastEntryMs)
	a := models.ActionHold
	if s.i < len(s.actions) {
		a = s.actions[s.i]
		s.i++
	}
	return models.Signal{Symbol: snap.Symbol, Action: a, Strength: 0.9, CreatedAt: nowMs}
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		InitialEquity:    10000,
		LookbackSeconds:  600,
		ATRWindowTicks:   2,
		BufferCapacity:   1000,
		SignalEveryTicks: 1,
		MinSignalTicks:   2,
		TickChanCapacity: 16,
		TakerFeeRate:     0.0005,
		MakerFeeRate:     0.0002,
		SlippagePct:      0.0001,
	}
}

func testParams() models.CoinParams {
	return models.CoinParams{
		Symbol:                "ETHUSDT",
		Variant:               models.VariantAggressive,
		HybridVolThresholdPct: 1e-9,
		ATRVolThresholdPct:    1e-9,
		BBBandMin:             0.01,
		BBBandMax:             0.99,
		CooldownSeconds:       60,
		PositionSizeFraction:  0.1,
		Leverage:              10,
		HardStopATRMultiplier: 2.0,
		MinLossFloorPct:       0.01,
	}
}

type workerFixture struct {
	w     *Worker
	led   *ledger.Ledger
	paper *gw.PaperGateway
	gen   *scriptedGen
	ts    int64
}

func newFixture(actions ...models.Action) *workerFixture {
	cfg := testEngineConfig()
	led := ledger.New(cfg.InitialEquity)
	paper := gw.NewPaperGateway(gw.FeeConfigView{
		TakerFeeRate: cfg.TakerFeeRate,
		MakerFeeRate: cfg.MakerFeeRate,
	})
	gen := &scriptedGen{actions: actions}
	w := NewWorker("ETHUSDT", testParams(), cfg, gen, paper, paper, led, nil, nil)
	return &workerFixture{w: w, led: led, paper: paper, gen: gen}
}

func (f *workerFixture) tick(price float64) {
	f.ts += 1000
	f.w.ProcessTick(context.Background(), models.Tick{
		Symbol: "ETHUSDT", Timestamp: f.ts, Price: price, Volume: 1,
	})
}

// Зигзаг ±0.1 держит трейлинг на расстоянии, позиции живут.
func (f *workerFixture) warmupStraddle(t *testing.T) {
	t.Helper()
	f.tick(100)   // буфер греется
	f.tick(100.1) // первый вызов генератора: вход
	require.Equal(t, StateBothOpen, f.w.State())
}

func TestWorker_EntryOpensBothSides(t *testing.T) {
	f := newFixture(models.ActionEntryBoth)
	f.warmupStraddle(t)

	open := f.led.OpenPositions("ETHUSDT")
	require.Len(t, open, 2)
	assert.Equal(t, models.SideLong, open[0].Side)
	assert.Equal(t, models.SideShort, open[1].Side)

	// sizing: equity·frac·lev / price
	wantQty := 10000.0 * 0.1 * 10 / 100.1
	assert.InDelta(t, wantQty, open[0].Quantity, 1e-9)
	assert.InDelta(t, wantQty, open[1].Quantity, 1e-9)
	assert.Equal(t, 100.1, open[0].Entry)

	// стопы проинициализированы по обе стороны от входа
	assert.Less(t, open[0].Stop, open[0].Entry)
	assert.Greater(t, open[1].Stop, open[1].Entry)
}

func TestWorker_BothLegsSurviveQuietZigzag(t *testing.T) {
	f := newFixture(models.ActionEntryBoth)
	f.warmupStraddle(t)

	for _, p := range []float64{100, 100.1, 100, 100.1, 100} {
		f.tick(p)
	}
	assert.Equal(t, StateBothOpen, f.w.State())
	assert.Empty(t, f.led.ClosedTrades())
}

func TestWorker_TrailingClosesLegsOneByOne(t *testing.T) {
	f := newFixture(models.ActionEntryBoth)
	f.warmupStraddle(t)

	for _, p := range []float64{100, 100.1, 100} {
		f.tick(p)
	}

	// рывок вверх выбивает SHORT по его стопу, LONG остаётся
	f.tick(100.8)
	require.Equal(t, StateLongOnly, f.w.State())

	trades := f.led.ClosedTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, models.SideShort, trades[0].Side)
	assert.Equal(t, models.ExitTrailingStop, trades[0].ExitReason)
	// стоп шорта стоял на ~100.15, выход по цене стопа, не по тику
	assert.InDelta(t, 100.15, trades[0].Exit, 0.01)

	// откат закрывает и LONG трейлингом
	f.tick(99.9)
	require.Equal(t, StateIdle, f.w.State())

	trades = f.led.ClosedTrades()
	require.Len(t, trades, 2)
	assert.Equal(t, models.SideLong, trades[1].Side)
	assert.Equal(t, models.ExitTrailingStop, trades[1].ExitReason)

	// учёт сходится: equity = initial + Σ net, fees = Σ fees
	var net, fees float64
	for _, tr := range trades {
		assert.InDelta(t, tr.NetPnL, tr.GrossPnL-tr.FeesPaid, 1e-9)
		net += tr.NetPnL
		fees += tr.FeesPaid
	}
	assert.InDelta(t, 10000+net, f.led.Equity(), 1e-9)
	assert.InDelta(t, fees, f.led.TotalFees(), 1e-9)
}

func TestWorker_CloseAllFlattensAndArmsCooldown(t *testing.T) {
	f := newFixture(models.ActionEntryBoth, models.ActionHold, models.ActionCloseAll, models.ActionHold)
	f.warmupStraddle(t)

	f.tick(100) // HOLD
	f.tick(100.1)
	require.Equal(t, StateIdle, f.w.State())

	trades := f.led.ClosedTrades()
	require.Len(t, trades, 2)
	for _, tr := range trades {
		assert.Equal(t, models.ExitSignalClose, tr.ExitReason)
		// обе ноги закрыты по цене тика CLOSE_ALL
		assert.Equal(t, 100.1, tr.Exit)
	}

	// кулдаун-клок взведён временем закрытия
	f.tick(100)
	seen := f.gen.lastEntrySeen
	assert.Equal(t, f.ts-1000, seen[len(seen)-1])
}

func TestWorker_FailedSecondLegRevertsFirst(t *testing.T) {
	f := newFixture(models.ActionEntryBoth)
	f.tick(100)
	f.paper.FailOrder(2, gw.NewOrderError(gw.KindRejected, errors.New("insufficient balance")))
	f.tick(100.1)

	// однобокой позиции не осталось
	assert.Equal(t, StateIdle, f.w.State())
	assert.Equal(t, 0, f.led.OpenCount())

	// откат попал в журнал: комиссии раунд-трипа учтены честно
	trades := f.led.ClosedTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, models.SideLong, trades[0].Side)
	assert.Equal(t, trades[0].Entry, trades[0].Exit)
	assert.Negative(t, trades[0].NetPnL)
	assert.Less(t, f.led.Equity(), 10000.0)
}

func TestWorker_FailedFirstLegAbandonsSignal(t *testing.T) {
	f := newFixture(models.ActionEntryBoth, models.ActionEntryBoth)
	f.tick(100)
	f.paper.FailOrder(1, gw.NewOrderError(gw.KindRejected, errors.New("bad price")))
	f.tick(100.1)

	assert.Equal(t, StateIdle, f.w.State())
	assert.Empty(t, f.led.ClosedTrades())
	assert.Equal(t, 10000.0, f.led.Equity())

	// следующий сигнал проходит как обычно
	f.tick(100)
	assert.Equal(t, StateBothOpen, f.w.State())
}

func TestWorker_NoEntryOnTheTickThatClosed(t *testing.T) {
	// генератор требует вход на каждом тике; после срабатывания стопа
	// на том же тике входа быть не должно
	f := newFixture(
		models.ActionEntryBoth,
		models.ActionEntryBoth, models.ActionEntryBoth, models.ActionEntryBoth,
		models.ActionEntryBoth, models.ActionEntryBoth, models.ActionEntryBoth,
	)
	f.warmupStraddle(t)

	for _, p := range []float64{100, 100.1, 100} {
		f.tick(p)
	}
	// выбивает SHORT; вход в тот же тик запрещён, LONG ещё открыт
	f.tick(100.8)
	assert.Equal(t, StateLongOnly, f.w.State())
	require.Len(t, f.led.ClosedTrades(), 1)
}

func TestWorker_OutOfOrderAndDuplicateTicksDropped(t *testing.T) {
	f := newFixture()
	f.tick(100)
	f.tick(101)

	// строго меньший timestamp — дроп со счётчиком
	f.w.ProcessTick(context.Background(), models.Tick{
		Symbol: "ETHUSDT", Timestamp: f.ts - 1500, Price: 99, Volume: 1,
	})
	assert.Equal(t, int64(1), f.w.DroppedOutOfOrder.Load())

	// дубль на границе реконнекта: тот же ts/цена/объём
	f.w.ProcessTick(context.Background(), models.Tick{
		Symbol: "ETHUSDT", Timestamp: f.ts, Price: 101, Volume: 1,
	})
	assert.Equal(t, int64(1), f.w.DroppedDuplicate.Load())

	// равный ts с другой ценой — легитимный тик
	f.w.ProcessTick(context.Background(), models.Tick{
		Symbol: "ETHUSDT", Timestamp: f.ts, Price: 101.2, Volume: 1,
	})
	assert.Equal(t, int64(1), f.w.DroppedDuplicate.Load())
}

func TestWorker_OfferDropsOldestOnBackpressure(t *testing.T) {
	cfg := testEngineConfig()
	cfg.TickChanCapacity = 2
	led := ledger.New(cfg.InitialEquity)
	paper := gw.NewPaperGateway(gw.FeeConfigView{})
	w := NewWorker("ETHUSDT", testParams(), cfg, &scriptedGen{}, paper, paper, led, nil, nil)

	for i := 0; i < 4; i++ {
		w.Offer(models.Tick{Symbol: "ETHUSDT", Timestamp: int64(i), Price: 100, Volume: 1})
	}
	assert.Equal(t, int64(2), w.DroppedBackpressure.Load())
}

func TestWorker_CooldownBetweenEntriesObserved(t *testing.T) {
	// инвариант: два последовательных входа разделены как минимум кулдауном —
	// воркер отдаёт генератору клок последнего входа
	f := newFixture(models.ActionEntryBoth)
	f.warmupStraddle(t)
	entryTs := f.ts

	f.tick(100)
	f.tick(100.1)
	seen := f.gen.lastEntrySeen
	assert.Equal(t, entryTs, seen[len(seen)-1])
}

func TestWorker_RestoreResumesPersistedPosition(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.w.Restore(models.Position{
		ID: "ETHUSDT_LONG_500", Symbol: "ETHUSDT", Side: models.SideLong,
		Entry: 100, EntryTime: 500, Quantity: 10, Leverage: 10,
		Extreme: 101, Stop: 99.5,
	}))

	assert.Equal(t, StateLongOnly, f.w.State())
	assert.Equal(t, 1, f.led.OpenCount())

	// стоп продолжает храповик с восстановленного уровня
	f.tick(100)
	f.tick(99.4)
	trades := f.led.ClosedTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, models.SideLong, trades[0].Side)
	assert.GreaterOrEqual(t, trades[0].Exit, 99.5)
}

func TestWorker_RestoreRejectsForeignSymbol(t *testing.T) {
	f := newFixture()
	err := f.w.Restore(models.Position{ID: "x", Symbol: "SOLUSDT", Side: models.SideLong})
	require.Error(t, err)
}

func TestEngine_RoutesAndShutsDownWithoutFlattening(t *testing.T) {
	cfg := &config.Config{Engine: testEngineConfig()}
	set := config.CoinParamsSet{
		"ETHUSDT": testParams(),
		"SKIPPED": func() models.CoinParams { p := testParams(); p.Symbol = "SKIPPED"; p.Excluded = true; return p }(),
	}
	led := ledger.New(cfg.Engine.InitialEquity)
	paper := gw.NewPaperGateway(gw.FeeConfigView{
		TakerFeeRate: cfg.Engine.TakerFeeRate,
		MakerFeeRate: cfg.Engine.MakerFeeRate,
	})
	e := NewEngine(cfg, set, &scriptedGen{actions: []models.Action{models.ActionEntryBoth}}, paper, paper, led, nil, nil)

	require.Len(t, e.Symbols(), 1, "excluded symbols get no worker")

	e.Start(context.Background())
	e.OnTick(models.Tick{Symbol: "ETHUSDT", Timestamp: 1000, Price: 100, Volume: 1})
	e.OnTick(models.Tick{Symbol: "ETHUSDT", Timestamp: 2000, Price: 100.1, Volume: 1})
	e.OnTick(models.Tick{Symbol: "UNKNOWN", Timestamp: 2000, Price: 1, Volume: 1}) // игнор

	e.Shutdown(context.Background())

	// позиции пережили шатдаун открытыми
	assert.Equal(t, 2, led.OpenCount())
	assert.Empty(t, led.ClosedTrades())

	perf := e.Performance()
	assert.Equal(t, 2, perf.OpenPositionCount)
	assert.Equal(t, 0, perf.TotalTrades)
}
