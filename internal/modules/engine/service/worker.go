package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"tick_trader/internal/helper"
	"tick_trader/internal/indicators"
	"tick_trader/internal/ledger"
	"tick_trader/internal/models"
	"tick_trader/internal/modules/config"
	gw "tick_trader/internal/modules/gateway/service"
	"tick_trader/internal/tickbuf"
	"tick_trader/internal/trailing"
	"tick_trader/pkg/logger"
)

// SymbolState — состояние машины символа, выводится из открытых позиций.
type SymbolState string

const (
	StateIdle      SymbolState = "IDLE"
	StateLongOnly  SymbolState = "LONG_ONLY"
	StateShortOnly SymbolState = "SHORT_ONLY"
	StateBothOpen  SymbolState = "BOTH_OPEN"
)

// PriceMarker — бумажному шлюзу нужна референсная цена перед ордером.
// Живой шлюз цену знает сам, там маркер nil.
type PriceMarker interface {
	MarkPrice(symbol string, price float64, tsMs int64)
}

// TradeStore — персистенс: журнал закрытых сделок (append-only) и снапшот
// открытых позиций (перезаписывается при каждом изменении).
type TradeStore interface {
	AppendTrade(ctx context.Context, t models.Trade) error
	SaveOpenPositions(ctx context.Context, open []models.Position) error
}

// Notifier — минимум, который нужен движку от телеграма.
type Notifier interface {
	Sendf(format string, args ...any)
}

// SignalEvaluator — генератор сигналов с точки зрения воркера.
type SignalEvaluator interface {
	Evaluate(snap models.IndicatorSnapshot, p models.CoinParams, nowMs, lastEntryMs int64, openCount int) models.Signal
}

// Worker — единственный владелец состояния одного символа: буфер тиков,
// открытые позиции, трейлинг и кулдаун трогает только он. Общее — ledger —
// сериализовано внутри ledger.
type Worker struct {
	symbol string
	params models.CoinParams
	cfg    config.EngineConfig

	buf    *tickbuf.Buffer
	gen    SignalEvaluator
	gwc    gw.Gateway
	marker PriceMarker
	led    *ledger.Ledger
	fees   ledger.FeeConfig
	store  TradeStore
	notif  Notifier

	longPos    *models.Position
	shortPos   *models.Position
	longTrail  *trailing.State
	shortTrail *trailing.State

	lastEntryMs      int64
	lastTick         models.Tick
	haveLast         bool
	ticksSinceSignal int
	closedThisTick   bool

	in       chan models.Tick
	fatalErr error

	DroppedOutOfOrder   atomic.Int64
	DroppedDuplicate    atomic.Int64
	DroppedBackpressure atomic.Int64
}

func NewWorker(
	symbol string,
	params models.CoinParams,
	cfg config.EngineConfig,
	gen SignalEvaluator,
	gateway gw.Gateway,
	marker PriceMarker,
	led *ledger.Ledger,
	store TradeStore,
	notif Notifier,
) *Worker {
	return &Worker{
		symbol: symbol,
		params: params,
		cfg:    cfg,
		buf:    tickbuf.New(cfg.BufferCapacity),
		gen:    gen,
		gwc:    gateway,
		marker: marker,
		led:    led,
		fees: ledger.FeeConfig{
			TakerFeeRate: cfg.TakerFeeRate,
			MakerFeeRate: cfg.MakerFeeRate,
			SlippagePct:  cfg.SlippagePct,
		},
		store: store,
		notif: notif,
		in:    make(chan models.Tick, cfg.TickChanCapacity),
	}
}

func (w *Worker) Symbol() string { return w.symbol }

func (w *Worker) State() SymbolState {
	switch {
	case w.longPos != nil && w.shortPos != nil:
		return StateBothOpen
	case w.longPos != nil:
		return StateLongOnly
	case w.shortPos != nil:
		return StateShortOnly
	default:
		return StateIdle
	}
}

func (w *Worker) Failed() error { return w.fatalErr }

// Run — цикл воркера в живом режиме. Реплей зовёт ProcessTick напрямую.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-w.in:
			if !ok {
				return
			}
			w.ProcessTick(ctx, t)
			if w.fatalErr != nil {
				return
			}
		}
	}
}

// Offer кладёт тик в канал воркера. При переполнении выталкивает самый
// старый: протухшие тики для живой торговли бесполезны.
func (w *Worker) Offer(t models.Tick) {
	select {
	case w.in <- t:
		return
	default:
	}
	select {
	case <-w.in:
		w.DroppedBackpressure.Add(1)
	default:
	}
	select {
	case w.in <- t:
	default:
		w.DroppedBackpressure.Add(1)
	}
}

func (w *Worker) CloseInput() { close(w.in) }

// ProcessTick — фиксированный порядок шага: буфер → индикаторы → стопы
// (LONG раньше SHORT) → генератор по кадансу → вход/закрытие. Стопы всегда
// отрабатывают раньше новых входов, и вход не случается на тике закрытия.
func (w *Worker) ProcessTick(ctx context.Context, t models.Tick) {
	if w.fatalErr != nil {
		return
	}
	w.closedThisTick = false

	if w.haveLast {
		if t.Timestamp < w.lastTick.Timestamp {
			w.DroppedOutOfOrder.Add(1)
			return
		}
		// реконнект стримера может продублировать тик на границе
		if t.Timestamp == w.lastTick.Timestamp && t.SameTrade(w.lastTick) {
			w.DroppedDuplicate.Add(1)
			return
		}
	}
	w.lastTick = t
	w.haveLast = true

	w.buf.Append(t)

	window := w.buf.Since(w.cfg.LookbackSeconds)
	if len(window) == 0 {
		// буфер ещё не покрывает полное окно — считаем по последним
		// MinSignalTicks тикам (пока их меньше, окно пустое)
		window = w.buf.Recent(w.cfg.MinSignalTicks)
	}
	snap := indicators.Snapshot(w.symbol, window, w.cfg.ATRWindowTicks)

	var atrPct float64
	haveATR := snap.ATRLikeOk && snap.Price > 0
	if haveATR {
		atrPct = snap.ATRLikeVol / snap.Price
	}

	// стопы на каждом тике, LONG раньше SHORT
	if haveATR {
		if w.longPos != nil {
			w.updateStop(ctx, w.longPos, w.longTrail, t, atrPct)
		}
		if w.shortPos != nil {
			w.updateStop(ctx, w.shortPos, w.shortTrail, t, atrPct)
		}
	}
	if w.fatalErr != nil {
		return
	}

	// генератор — раз в SignalEveryTicks тиков после прогрева буфера
	w.ticksSinceSignal++
	if w.buf.Len() < w.cfg.MinSignalTicks || w.ticksSinceSignal < w.cfg.SignalEveryTicks {
		return
	}
	w.ticksSinceSignal = 0

	sig := w.gen.Evaluate(snap, w.params, t.Timestamp, w.lastEntryMs, w.openCount())
	switch sig.Action {
	case models.ActionEntryBoth:
		if w.openCount() > 0 || w.closedThisTick {
			// вход только из плоского состояния и не на тике закрытия
			return
		}
		w.led.SignalsGenerated.Add(1)
		w.enterBoth(ctx, sig, t, atrPct)
	case models.ActionCloseAll:
		w.closeAll(ctx, t, sig.Reason)
	default:
		switch sig.Reason {
		case "cooldown":
			w.led.SignalsSkippedCooldown.Add(1)
		case "positions open":
			w.led.SignalsSkippedOpenPos.Add(1)
		}
	}
}

func (w *Worker) openCount() int {
	n := 0
	if w.longPos != nil {
		n++
	}
	if w.shortPos != nil {
		n++
	}
	return n
}

func (w *Worker) updateStop(ctx context.Context, pos *models.Position, tr *trailing.State, t models.Tick, atrPct float64) {
	dec, err := tr.Update(t.Price, atrPct)
	if err != nil {
		w.fatal(err)
		return
	}
	pos.Stop = dec.Stop
	pos.Extreme = tr.Extreme()
	w.led.UpdateStop(w.symbol, pos.Side, dec.Stop, tr.Extreme())

	if dec.Close {
		// исполнение по цене стопа, как у стоп-ордера
		w.closePosition(ctx, pos, dec.Stop, t.Timestamp, dec.Reason)
	}
}

// enterBoth — атомарный двуногий вход: либо обе ноги, либо ни одной.
// Если вторая нога не исполнилась, первая немедленно закрывается по рынку.
func (w *Worker) enterBoth(ctx context.Context, sig models.Signal, t models.Tick, atrPct float64) {
	equity := w.led.EquityForSizing()
	notional := equity * w.params.PositionSizeFraction * float64(w.params.Leverage)
	qty := notional / t.Price
	if qty <= 0 {
		return
	}

	w.mark(t.Price, t.Timestamp)

	longFill, err := w.gwc.PlaceMarket(ctx, w.symbol, models.SideLong, qty)
	if err != nil {
		logger.Error("[%s] entry long leg failed: %v", w.symbol, err)
		return
	}
	shortFill, err := w.gwc.PlaceMarket(ctx, w.symbol, models.SideShort, qty)
	if err != nil {
		logger.Error("[%s] entry short leg failed, reverting long: %v", w.symbol, err)
		w.revertLeg(ctx, models.SideLong, longFill, qty)
		return
	}

	longPos := &models.Position{
		ID:        helper.PositionID(w.symbol, string(models.SideLong), longFill.Timestamp),
		Symbol:    w.symbol,
		Side:      models.SideLong,
		Entry:     longFill.Price,
		EntryTime: longFill.Timestamp,
		Quantity:  qty,
		Leverage:  w.params.Leverage,
		Extreme:   longFill.Price,
		SignalID:  fmt.Sprintf("%s_%d", w.symbol, sig.CreatedAt),
	}
	shortPos := &models.Position{
		ID:        helper.PositionID(w.symbol, string(models.SideShort), shortFill.Timestamp),
		Symbol:    w.symbol,
		Side:      models.SideShort,
		Entry:     shortFill.Price,
		EntryTime: shortFill.Timestamp,
		Quantity:  qty,
		Leverage:  w.params.Leverage,
		Extreme:   shortFill.Price,
		SignalID:  longPos.SignalID,
	}

	trCfg := trailing.ConfigFor(w.params)
	longTrail := trailing.NewState(trCfg)
	longTrail.Initialize(models.SideLong, longPos.Entry, atrPct)
	shortTrail := trailing.NewState(trCfg)
	shortTrail.Initialize(models.SideShort, shortPos.Entry, atrPct)
	longPos.Stop = longTrail.Stop()
	shortPos.Stop = shortTrail.Stop()

	if err := w.led.RegisterOpen(longPos); err != nil {
		w.fatal(err)
		return
	}
	if err := w.led.RegisterOpen(shortPos); err != nil {
		w.led.Unregister(w.symbol, models.SideLong)
		w.fatal(err)
		return
	}

	w.longPos, w.longTrail = longPos, longTrail
	w.shortPos, w.shortTrail = shortPos, shortTrail
	w.lastEntryMs = t.Timestamp

	w.persistOpen(ctx)
	w.sendf("🎯 [%s] Стрэддл открыт @ %.4f | qty=%.4f lev=%dx | %s",
		w.symbol, t.Price, qty, w.params.Leverage, sig.Reason)
}

// revertLeg закрывает единственную исполнившуюся ногу: однобокая позиция
// после неудавшегося стрэддла существовать не должна. Комиссии раунд-трипа
// при этом честно попадают в журнал.
func (w *Worker) revertLeg(ctx context.Context, side models.Side, fill gw.Fill, qty float64) {
	pos := models.Position{
		ID:        helper.PositionID(w.symbol, string(side), fill.Timestamp),
		Symbol:    w.symbol,
		Side:      side,
		Entry:     fill.Price,
		EntryTime: fill.Timestamp,
		Quantity:  qty,
		Leverage:  w.params.Leverage,
		Extreme:   fill.Price,
	}
	if err := w.led.RegisterOpen(&pos); err != nil {
		w.fatal(err)
		return
	}
	closeFill, err := w.gwc.PlaceMarket(ctx, w.symbol, opposite(side), qty)
	if err != nil {
		// закрыть не смогли — оставляем позицию, пусть её ведёт трейлинг
		logger.Error("[%s] revert close failed: %v", w.symbol, err)
		tr := trailing.NewState(trailing.ConfigFor(w.params))
		tr.Initialize(side, pos.Entry, 0)
		pos.Stop = tr.Stop()
		if side == models.SideLong {
			w.longPos, w.longTrail = &pos, tr
		} else {
			w.shortPos, w.shortTrail = &pos, tr
		}
		return
	}
	trade := ledger.ComputeTrade(pos, closeFill.Price, closeFill.Timestamp, models.ExitSignalClose, w.fees, closeFill.Maker)
	if err := w.led.RecordClose(trade); err != nil {
		w.fatal(err)
		return
	}
	w.appendTrade(ctx, trade)
}

func (w *Worker) closePosition(ctx context.Context, pos *models.Position, refPrice float64, tsMs int64, reason models.ExitReason) {
	w.mark(refPrice, tsMs)
	fill, err := w.gwc.PlaceMarket(ctx, w.symbol, opposite(pos.Side), pos.Quantity)
	if err != nil {
		// позиция остаётся открытой, стоп сработает на следующем тике снова
		logger.Error("[%s] close %s failed: %v", w.symbol, pos.Side, err)
		return
	}

	trade := ledger.ComputeTrade(*pos, fill.Price, fill.Timestamp, reason, w.fees, fill.Maker)
	if err := w.led.RecordClose(trade); err != nil {
		w.fatal(err)
		return
	}

	if pos.Side == models.SideLong {
		w.longPos, w.longTrail = nil, nil
	} else {
		w.shortPos, w.shortTrail = nil, nil
	}
	w.closedThisTick = true

	w.appendTrade(ctx, trade)
	w.persistOpen(ctx)

	mark := "✅"
	if trade.NetPnL < 0 {
		mark = "❌"
	}
	w.sendf("%s [%s] %s закрыт @ %.4f | net=%+.2f fee=%.4f | %s",
		mark, w.symbol, pos.Side, trade.Exit, trade.NetPnL, trade.FeesPaid, reason)
}

// closeAll — аварийное закрытие обеих ног по рынку, минуя трейлинг.
// Кулдаун-клок взводится, чтобы не войти обратно в ту же вспышку.
func (w *Worker) closeAll(ctx context.Context, t models.Tick, reason string) {
	if w.openCount() == 0 {
		return
	}
	logger.Info("[%s] CLOSE_ALL: %s", w.symbol, reason)
	if w.longPos != nil {
		w.closePosition(ctx, w.longPos, t.Price, t.Timestamp, models.ExitSignalClose)
	}
	if w.shortPos != nil && w.fatalErr == nil {
		w.closePosition(ctx, w.shortPos, t.Price, t.Timestamp, models.ExitSignalClose)
	}
	w.lastEntryMs = t.Timestamp
}

// Restore поднимает позицию из снапшота открытых позиций при рестарте.
// Зовётся до первого тика.
func (w *Worker) Restore(p models.Position) error {
	if p.Symbol != w.symbol {
		return fmt.Errorf("restore: %s position offered to %s worker", p.Symbol, w.symbol)
	}
	pos := p
	tr := trailing.NewState(trailing.ConfigFor(w.params))
	tr.Restore(p.Side, p.Entry, p.Extreme, p.Stop)

	if err := w.led.RegisterOpen(&pos); err != nil {
		return err
	}
	if p.Side == models.SideLong {
		w.longPos, w.longTrail = &pos, tr
	} else {
		w.shortPos, w.shortTrail = &pos, tr
	}
	if p.EntryTime > w.lastEntryMs {
		w.lastEntryMs = p.EntryTime
	}
	return nil
}

// FlattenAll закрывает всё по последней цене. Только для конца реплея;
// в живом режиме останов двигателя позиции не трогает.
func (w *Worker) FlattenAll(ctx context.Context) {
	if !w.haveLast {
		return
	}
	w.closeAll(ctx, w.lastTick, "run stopped")
}

func (w *Worker) mark(price float64, tsMs int64) {
	if w.marker != nil {
		w.marker.MarkPrice(w.symbol, price, tsMs)
	}
}

func (w *Worker) appendTrade(ctx context.Context, trade models.Trade) {
	if w.store == nil {
		return
	}
	if err := w.store.AppendTrade(ctx, trade); err != nil {
		logger.Error("[%s] trade log append failed: %v", w.symbol, err)
	}
}

func (w *Worker) persistOpen(ctx context.Context) {
	if w.store == nil {
		return
	}
	if err := w.store.SaveOpenPositions(ctx, w.led.AllOpen()); err != nil {
		logger.Error("[%s] open positions snapshot failed: %v", w.symbol, err)
	}
}

func (w *Worker) sendf(format string, args ...any) {
	if w.notif != nil {
		w.notif.Sendf(format, args...)
	}
}

// fatal — нарушение инварианта. Дамп контекста в лог, воркер символа
// останавливается, остальные продолжают работать.
func (w *Worker) fatal(err error) {
	w.fatalErr = err
	logger.Error("[%s] FATAL invariant violation: %v | state=%s long=%+v short=%+v lastTick=%+v",
		w.symbol, err, w.State(), w.longPos, w.shortPos, w.lastTick)
	w.sendf("⛔️ [%s] Воркер остановлен: %v", w.symbol, err)
}

func opposite(s models.Side) models.Side {
	if s == models.SideLong {
		return models.SideShort
	}
	return models.SideLong
}
