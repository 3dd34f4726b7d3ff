package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"

	"tick_trader/internal/models"
)

// Ledger — единственный владелец капитала и журнала сделок. Воркеры символов
// работают параллельно, поэтому все мутации сериализованы одним мьютексом.
type Ledger struct {
	mu sync.Mutex

	initialEquity float64
	equity        float64
	peakEquity    float64
	maxDrawdown   float64 // доля от пика

	// symbol -> side -> открытая позиция; не больше одной на сторону
	open map[string]map[models.Side]*models.Position

	trades    []models.Trade
	totalFees float64

	perSymbol map[string]*models.SymbolStats

	// диагностика генератора, пишут воркеры
	SignalsGenerated       atomic.Int64
	SignalsSkippedCooldown atomic.Int64
	SignalsSkippedOpenPos  atomic.Int64
}

func New(initialEquity float64) *Ledger {
	return &Ledger{
		initialEquity: initialEquity,
		equity:        initialEquity,
		peakEquity:    initialEquity,
		open:          make(map[string]map[models.Side]*models.Position),
		perSymbol:     make(map[string]*models.SymbolStats),
	}
}

// EquityForSizing — капитал на момент начала попытки входа. Не перечитывается,
// если параллельное закрытие успело изменить equity до исполнения.
func (l *Ledger) EquityForSizing() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equity
}

// RegisterOpen регистрирует позицию. Вторая позиция той же стороны по тому же
// символу — нарушение инварианта, воркер обязан остановиться.
func (l *Ledger) RegisterOpen(p *models.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bySide := l.open[p.Symbol]
	if bySide == nil {
		bySide = make(map[models.Side]*models.Position, 2)
		l.open[p.Symbol] = bySide
	}
	if _, exists := bySide[p.Side]; exists {
		return fmt.Errorf("ledger: duplicate %s position on %s", p.Side, p.Symbol)
	}
	bySide[p.Side] = p

	st := l.symbolStats(p.Symbol)
	if p.EntryTime > st.LastEntryTime {
		st.LastEntryTime = p.EntryTime
	}
	return nil
}

// Unregister убирает позицию из открытых без записи сделки.
// Нужен для отката неатомарного двуногого входа.
func (l *Ledger) Unregister(symbol string, side models.Side) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bySide := l.open[symbol]; bySide != nil {
		delete(bySide, side)
		if len(bySide) == 0 {
			delete(l.open, symbol)
		}
	}
}

// RecordClose переводит открытую позицию в журнал. Позиция закрывается ровно
// один раз; повторное закрытие — ошибка.
func (l *Ledger) RecordClose(t models.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bySide := l.open[t.Symbol]
	p, ok := bySide[t.Side]
	if !ok || p.ID != t.PositionID {
		return fmt.Errorf("ledger: close of unknown position %s", t.PositionID)
	}
	delete(bySide, t.Side)
	if len(bySide) == 0 {
		delete(l.open, t.Symbol)
	}

	l.trades = append(l.trades, t)
	l.totalFees += t.FeesPaid
	l.equity += t.NetPnL
	if l.equity > l.peakEquity {
		l.peakEquity = l.equity
	}
	if l.peakEquity > 0 {
		dd := (l.peakEquity - l.equity) / l.peakEquity
		if dd > l.maxDrawdown {
			l.maxDrawdown = dd
		}
	}

	st := l.symbolStats(t.Symbol)
	st.Trades++
	if t.Win() {
		st.Wins++
	} else {
		st.Losses++
	}
	st.GrossPnL += t.GrossPnL
	st.NetPnL += t.NetPnL
	st.FeesPaid += t.FeesPaid
	return nil
}

func (l *Ledger) symbolStats(symbol string) *models.SymbolStats {
	st, ok := l.perSymbol[symbol]
	if !ok {
		st = &models.SymbolStats{Symbol: symbol}
		l.perSymbol[symbol] = st
	}
	return st
}

// OpenPositions — копия открытых позиций символа (порядок: LONG, SHORT).
func (l *Ledger) OpenPositions(symbol string) []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Position
	if bySide := l.open[symbol]; bySide != nil {
		if p, ok := bySide[models.SideLong]; ok {
			out = append(out, *p)
		}
		if p, ok := bySide[models.SideShort]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, bySide := range l.open {
		n += len(bySide)
	}
	return n
}

// AllOpen — снимок всех открытых позиций для персистенса.
func (l *Ledger) AllOpen() []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Position
	for _, bySide := range l.open {
		if p, ok := bySide[models.SideLong]; ok {
			out = append(out, *p)
		}
		if p, ok := bySide[models.SideShort]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// UpdateStop синхронизирует стоп открытой позиции в реестре (для снапшотов).
func (l *Ledger) UpdateStop(symbol string, side models.Side, stop, extreme float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bySide := l.open[symbol]; bySide != nil {
		if p, ok := bySide[side]; ok {
			p.Stop = stop
			p.Extreme = extreme
		}
	}
}

func (l *Ledger) Equity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equity
}

func (l *Ledger) TotalFees() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalFees
}

// ClosedTrades — копия журнала в порядке закрытия.
func (l *Ledger) ClosedTrades() []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}
