package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"tick_trader/internal/models"
)

// PaperGateway — бумажное исполнение. Маркетные ордера заполняются по текущей
// референсной цене символа, лимитные — когда следующий тик пересекает цену.
// В реплее воркер проставляет референс перед каждым ордером, что делает
// исполнение детерминированным.
type PaperGateway struct {
	fees FeeConfigView

	mu     sync.Mutex
	marks  map[string]mark
	limits []*pendingLimit

	failAt  int // инъекция отказа на n-м будущем ордере, только для тестов
	failErr error
}

// FeeConfigView — ставки, которые шлюз сообщает в Fill.
type FeeConfigView struct {
	TakerFeeRate float64
	MakerFeeRate float64
}

type mark struct {
	price float64
	tsMs  int64
}

type pendingLimit struct {
	symbol string
	side   models.Side
	price  float64
	done   chan Fill
}

func NewPaperGateway(fees FeeConfigView) *PaperGateway {
	return &PaperGateway{
		fees:  fees,
		marks: make(map[string]mark),
	}
}

// MarkPrice — свежая референсная цена символа. Заодно исполняет дозревшие
// лимитники.
func (g *PaperGateway) MarkPrice(symbol string, price float64, tsMs int64) {
	g.mu.Lock()
	g.marks[symbol] = mark{price: price, tsMs: tsMs}
	remaining := g.limits[:0]
	var filled []*pendingLimit
	for _, pl := range g.limits {
		if pl.symbol == symbol && limitCrossed(pl.side, pl.price, price) {
			filled = append(filled, pl)
		} else {
			remaining = append(remaining, pl)
		}
	}
	g.limits = remaining
	g.mu.Unlock()

	for _, pl := range filled {
		pl.done <- Fill{Price: pl.price, Timestamp: tsMs, FeeRate: g.fees.MakerFeeRate, Maker: true}
	}
}

// покупка исполняется, когда рынок опустился до лимита; продажа — когда дорос
func limitCrossed(side models.Side, limit, price float64) bool {
	if side == models.SideLong {
		return price <= limit
	}
	return price >= limit
}

// FailOrder заставляет n-й будущий ордер (1 — следующий) вернуть err.
// Для проверки отката двуногого входа.
func (g *PaperGateway) FailOrder(n int, err error) {
	g.mu.Lock()
	g.failAt = n
	g.failErr = err
	g.mu.Unlock()
}

func (g *PaperGateway) takeInjected() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failErr == nil {
		return nil
	}
	g.failAt--
	if g.failAt > 0 {
		return nil
	}
	err := g.failErr
	g.failErr = nil
	return err
}

func (g *PaperGateway) PlaceMarket(ctx context.Context, symbol string, side models.Side, quantity float64) (Fill, error) {
	if err := g.takeInjected(); err != nil {
		return Fill{}, err
	}
	if quantity <= 0 {
		return Fill{}, NewOrderError(KindRejected, errors.Errorf("bad quantity %f", quantity))
	}
	if err := ctx.Err(); err != nil {
		return Fill{}, NewOrderError(KindTimeout, err)
	}

	g.mu.Lock()
	m, ok := g.marks[symbol]
	g.mu.Unlock()
	if !ok {
		return Fill{}, NewOrderError(KindRejected, errors.Errorf("no market price for %s", symbol))
	}
	return Fill{Price: m.price, Timestamp: m.tsMs, FeeRate: g.fees.TakerFeeRate}, nil
}

func (g *PaperGateway) PlaceLimit(ctx context.Context, symbol string, side models.Side, quantity, price float64) (Fill, error) {
	if err := g.takeInjected(); err != nil {
		return Fill{}, err
	}
	if quantity <= 0 || price <= 0 {
		return Fill{}, NewOrderError(KindRejected, errors.Errorf("bad limit %f x %f", quantity, price))
	}

	g.mu.Lock()
	if m, ok := g.marks[symbol]; ok && limitCrossed(side, price, m.price) {
		g.mu.Unlock()
		return Fill{Price: price, Timestamp: m.tsMs, FeeRate: g.fees.MakerFeeRate, Maker: true}, nil
	}
	pl := &pendingLimit{symbol: symbol, side: side, price: price, done: make(chan Fill, 1)}
	g.limits = append(g.limits, pl)
	g.mu.Unlock()

	select {
	case fill := <-pl.done:
		return fill, nil
	case <-ctx.Done():
		g.cancelLimit(pl)
		return Fill{}, NewOrderError(KindUnfilledTimeout, ctx.Err())
	}
}

func (g *PaperGateway) cancelLimit(target *pendingLimit) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, pl := range g.limits {
		if pl == target {
			g.limits = append(g.limits[:i], g.limits[i+1:]...)
			return
		}
	}
}

var _ Gateway = (*PaperGateway)(nil)
