package replay

import (
	"context"

	"tick_trader/internal/ledger"
	"tick_trader/internal/models"
	"tick_trader/internal/modules/config"
	engsvc "tick_trader/internal/modules/engine/service"
	gwsvc "tick_trader/internal/modules/gateway/service"
	strat "tick_trader/internal/modules/strategy/service"
)

// Runner — детерминированный прогон движка по записанному потоку тиков.
// Никаких горутин и каналов: тики скармливаются воркерам строго в порядке
// файла, поэтому два прогона по одной записи дают идентичные журналы сделок.
type Runner struct {
	workers map[string]*engsvc.Worker
	led     *ledger.Ledger
	paper   *gwsvc.PaperGateway

	lastPrice map[string]float64
	lastSeen  int64
}

func NewRunner(engCfg config.EngineConfig, set config.CoinParamsSet, sink engsvc.TradeStore) *Runner {
	led := ledger.New(engCfg.InitialEquity)
	paper := gwsvc.NewPaperGateway(gwsvc.FeeConfigView{
		TakerFeeRate: engCfg.TakerFeeRate,
		MakerFeeRate: engCfg.MakerFeeRate,
	})
	gen := strat.NewGenerator()

	r := &Runner{
		workers:   make(map[string]*engsvc.Worker, len(set)),
		led:       led,
		paper:     paper,
		lastPrice: make(map[string]float64),
	}
	for symbol, params := range set {
		if params.Excluded {
			continue
		}
		// без врапера ретраев: бумажный шлюз не отдаёт transient-ошибок,
		// а бэкофф-слипы сломали бы детерминизм по времени прогона
		r.workers[symbol] = engsvc.NewWorker(symbol, params, engCfg, gen, paper, paper, led, sink, nil)
	}
	return r
}

func (r *Runner) Ledger() *ledger.Ledger { return r.led }

// Run прогоняет все тики. Символы без коин-параметров игнорируются.
func (r *Runner) Run(ctx context.Context, ticks []models.Tick) error {
	for _, t := range ticks {
		w, ok := r.workers[t.Symbol]
		if !ok {
			continue
		}
		w.ProcessTick(ctx, t)
		if err := w.Failed(); err != nil {
			return err
		}
		r.lastPrice[t.Symbol] = t.Price
		if t.Timestamp > r.lastSeen {
			r.lastSeen = t.Timestamp
		}
	}
	return nil
}

// Flatten закрывает остатки по последней цене каждого символа. Это финал
// прогона, не трейлинг-выход; в живом режиме такого нет.
func (r *Runner) Flatten(ctx context.Context) {
	for _, w := range r.workers {
		w.FlattenAll(ctx)
	}
}

func (r *Runner) Performance() models.PerformanceSnapshot {
	return r.led.Snapshot(r.lastPrice, r.lastSeen)
}
