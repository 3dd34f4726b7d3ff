package service

import (
	"context"
	"sync"
	"time"

	"tick_trader/internal/ledger"
	"tick_trader/internal/models"
	"tick_trader/internal/modules/config"
	gw "tick_trader/internal/modules/gateway/service"
	"tick_trader/pkg/logger"
)

// Engine связывает воркеры символов: роутит тики, запускает и гасит воркеры,
// отдаёт сводку по производительности.
type Engine struct {
	cfg     config.EngineConfig
	workers map[string]*Worker
	led     *ledger.Ledger
	store   TradeStore

	mu        sync.RWMutex
	lastPrice map[string]float64
	lastSeen  int64

	stopMu  sync.RWMutex
	stopped bool

	wg      sync.WaitGroup
	started bool
}

func NewEngine(
	cfg *config.Config,
	set config.CoinParamsSet,
	gen SignalEvaluator,
	gateway gw.Gateway,
	marker PriceMarker,
	led *ledger.Ledger,
	store TradeStore,
	notif Notifier,
) *Engine {
	e := &Engine{
		cfg:       cfg.Engine,
		workers:   make(map[string]*Worker, len(set)),
		led:       led,
		store:     store,
		lastPrice: make(map[string]float64),
	}
	for symbol, params := range set {
		if params.Excluded {
			continue
		}
		e.workers[symbol] = NewWorker(symbol, params, cfg.Engine, gen, gateway, marker, led, store, notif)
	}
	return e
}

func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.workers))
	for s := range e.workers {
		out = append(out, s)
	}
	return out
}

func (e *Engine) Worker(symbol string) (*Worker, bool) {
	w, ok := e.workers[symbol]
	return w, ok
}

func (e *Engine) Ledger() *ledger.Ledger { return e.led }

// PositionLoader — опциональная способность стора отдать снапшот открытых
// позиций для резюма.
type PositionLoader interface {
	LoadOpenPositions(ctx context.Context) ([]models.Position, error)
}

// Resume поднимает открытые позиции из персистентного снапшота. Зовётся до
// Start; позиции без воркера (символ исключён после рестарта) пропускаются
// с логом — их придётся сгладить вручную.
func (e *Engine) Resume(ctx context.Context) error {
	loader, ok := e.store.(PositionLoader)
	if !ok || e.store == nil {
		return nil
	}
	open, err := loader.LoadOpenPositions(ctx)
	if err != nil {
		return err
	}
	for _, p := range open {
		w, ok := e.workers[p.Symbol]
		if !ok {
			logger.Error("[%s] resume: no worker for persisted %s position %s", p.Symbol, p.Side, p.ID)
			continue
		}
		if err := w.Restore(p); err != nil {
			return err
		}
		logger.Info("[%s] resumed %s position %s @ %.6f stop=%.6f", p.Symbol, p.Side, p.ID, p.Entry, p.Stop)
	}
	return nil
}

// Start запускает по горутине на символ.
func (e *Engine) Start(ctx context.Context) {
	if e.started {
		return
	}
	e.started = true
	for _, w := range e.workers {
		w := w
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			w.Run(ctx)
			if err := w.Failed(); err != nil {
				logger.Error("[%s] worker stopped on invariant violation: %v", w.Symbol(), err)
			}
		}()
	}
	logger.Info("engine started: %d symbols", len(e.workers))
}

// OnTick роутит тик воркеру символа. Чужие символы игнорируются.
func (e *Engine) OnTick(t models.Tick) {
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		return
	}
	w, ok := e.workers[t.Symbol]
	if !ok {
		return
	}
	e.mu.Lock()
	e.lastPrice[t.Symbol] = t.Price
	if t.Timestamp > e.lastSeen {
		e.lastSeen = t.Timestamp
	}
	e.mu.Unlock()

	w.Offer(t)
}

// Shutdown: новые тики в каналы больше не попадают; каждый воркер
// дорабатывает тики, уже лежащие в его канале, и выходит (если контекст
// отменён раньше — выходит, не дочитав канал). Открытые
// позиции НЕ закрываются — принудительное сглаживание на выходе неотличимо
// от трейлинг-выхода и портит отчётность; вместо этого их снапшот
// персистится для резюма.
func (e *Engine) Shutdown(ctx context.Context) {
	// после флага ни один OnTick не доберётся до каналов
	e.stopMu.Lock()
	e.stopped = true
	e.stopMu.Unlock()

	for _, w := range e.workers {
		w.CloseInput()
	}
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Error("engine shutdown: workers did not drain in time")
	}

	if e.store != nil {
		if err := e.store.SaveOpenPositions(ctx, e.led.AllOpen()); err != nil {
			logger.Error("shutdown open-positions snapshot failed: %v", err)
		}
	}
	logger.Info("engine stopped: %d positions left open", e.led.OpenCount())
}

// Performance — сводка по требованию: закрытые сделки + нереализованный PnL
// открытых позиций по последним ценам.
func (e *Engine) Performance() models.PerformanceSnapshot {
	e.mu.RLock()
	marks := make(map[string]float64, len(e.lastPrice))
	for s, p := range e.lastPrice {
		marks[s] = p
	}
	nowMs := e.lastSeen
	e.mu.RUnlock()
	if nowMs == 0 {
		nowMs = time.Now().UnixMilli()
	}
	return e.led.Snapshot(marks, nowMs)
}

// Dropped — суммарные счётчики дропов по всем воркерам.
func (e *Engine) Dropped() (outOfOrder, duplicate, backpressure int64) {
	for _, w := range e.workers {
		outOfOrder += w.DroppedOutOfOrder.Load()
		duplicate += w.DroppedDuplicate.Load()
		backpressure += w.DroppedBackpressure.Load()
	}
	return
}
