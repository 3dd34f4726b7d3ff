package ledger

import (
	"sort"
	"time"

	"tick_trader/internal/models"
)

// Snapshot — отчёт о производительности на момент nowMs. Нереализованный PnL
// открытых позиций маркируется по последним ценам из markPrices (symbol -> price).
func (l *Ledger) Snapshot(markPrices map[string]float64, nowMs int64) models.PerformanceSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := models.PerformanceSnapshot{
		AccountEquity:  l.equity,
		InitialEquity:  l.initialEquity,
		RealizedNetPnL: l.equity - l.initialEquity,
		MaxDrawdownPct: l.maxDrawdown * 100,
		TotalTrades:    len(l.trades),
		TotalFeesPaid:  l.totalFees,

		SignalsGenerated:       l.SignalsGenerated.Load(),
		SignalsSkippedCooldown: l.SignalsSkippedCooldown.Load(),
		SignalsSkippedOpenPos:  l.SignalsSkippedOpenPos.Load(),
	}
	if l.initialEquity > 0 {
		snap.TotalReturnPct = (l.equity - l.initialEquity) / l.initialEquity * 100
	}

	// win rate и profit factor только по закрытым сделкам, от net
	var wins int
	var sumWin, sumLoss float64
	var firstEntry, lastEntry int64
	dayStart := startOfDayMs(nowMs)
	for _, t := range l.trades {
		if t.Win() {
			wins++
			sumWin += t.NetPnL
		} else {
			sumLoss += t.NetPnL
		}
		if t.ExitTime >= dayStart {
			snap.TradesToday++
		}
		if firstEntry == 0 || t.EntryTime < firstEntry {
			firstEntry = t.EntryTime
		}
		if t.EntryTime > lastEntry {
			lastEntry = t.EntryTime
		}
	}
	if len(l.trades) > 0 {
		snap.WinRate = float64(wins) / float64(len(l.trades)) * 100
		days := float64(lastEntry-firstEntry) / float64(24*time.Hour.Milliseconds())
		if days < 1 {
			days = 1
		}
		snap.TradesPerDay = float64(len(l.trades)) / days
	}
	if sumLoss < 0 {
		snap.ProfitFactor = sumWin / -sumLoss
	} else if sumWin > 0 {
		snap.ProfitFactor = sumWin
	}

	// открытые позиции с маркировкой по последнему тику
	for symbol, bySide := range l.open {
		mark := markPrices[symbol]
		for _, side := range []models.Side{models.SideLong, models.SideShort} {
			p, ok := bySide[side]
			if !ok {
				continue
			}
			view := models.OpenPositionView{
				Symbol:    p.Symbol,
				Side:      p.Side,
				Entry:     p.Entry,
				MarkPrice: mark,
				Quantity:  p.Quantity,
				Leverage:  p.Leverage,
				Stop:      p.Stop,
			}
			if mark > 0 {
				if p.Side == models.SideLong {
					view.UnrealizedPnL = (mark - p.Entry) * p.Quantity * float64(p.Leverage)
				} else {
					view.UnrealizedPnL = (p.Entry - mark) * p.Quantity * float64(p.Leverage)
				}
			}
			if nowMs > p.EntryTime {
				view.HoldingTimeSecond = (nowMs - p.EntryTime) / 1000
			}
			snap.UnrealizedPnL += view.UnrealizedPnL
			snap.OpenPositions = append(snap.OpenPositions, view)
			snap.OpenPositionCount++
		}
	}
	sort.Slice(snap.OpenPositions, func(i, j int) bool {
		a, b := snap.OpenPositions[i], snap.OpenPositions[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Side < b.Side
	})

	for _, st := range l.perSymbol {
		snap.PerSymbol = append(snap.PerSymbol, *st)
	}
	sort.Slice(snap.PerSymbol, func(i, j int) bool {
		return snap.PerSymbol[i].Symbol < snap.PerSymbol[j].Symbol
	})
	return snap
}

func startOfDayMs(nowMs int64) int64 {
	t := time.UnixMilli(nowMs).UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.UnixMilli()
}
