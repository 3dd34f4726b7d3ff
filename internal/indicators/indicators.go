package indicators

import (
	"math"

	"tick_trader/internal/models"
)

// Индикаторы — чистые функции над срезом тиков. Ни одна не паникует и не
// возвращает ошибку: нехватка данных — это (0, false), дальше решает вызывающий.

const (
	// масштабные константы гибридной волатильности: приводят стандартное
	// отклонение тиковых приращений и ATR-подобный размах в один диапазон
	hybridStdScale = 10.0
	hybridATRScale = 0.2

	// вырожденная полоса Боллинджера: ширина ≤ epsBand·price
	epsBand = 1e-6

	bollingerK = 2.0

	// ATR-подобный размах считается по под-окнам фиксированного размера
	DefaultATRWindowTicks = 100
)

// VWAP по окну. При нулевом суммарном объёме — среднее арифметическое цен.
func VWAP(ticks []models.Tick) (float64, bool) {
	if len(ticks) == 0 {
		return 0, false
	}
	var pv, vol float64
	for _, t := range ticks {
		pv += t.Price * t.Volume
		vol += t.Volume
	}
	if vol == 0 {
		var sum float64
		for _, t := range ticks {
			sum += t.Price
		}
		return sum / float64(len(ticks)), true
	}
	return pv / vol, true
}

// TickVarianceVol — выборочное стандартное отклонение (n−1) модулей
// тик-к-тик приращений цены. Нужно минимум 2 тика.
func TickVarianceVol(ticks []models.Tick) (float64, bool) {
	if len(ticks) < 2 {
		return 0, false
	}
	changes := make([]float64, 0, len(ticks)-1)
	var sum float64
	for i := 1; i < len(ticks); i++ {
		c := math.Abs(ticks[i].Price - ticks[i-1].Price)
		changes = append(changes, c)
		sum += c
	}
	if len(changes) < 2 {
		return 0, true
	}
	mean := sum / float64(len(changes))
	var ss float64
	for _, c := range changes {
		d := c - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(changes)-1)), true
}

// ATRLikeVol — средний размах max−min по непересекающимся под-окнам
// размера windowTicks. Меньше одного полного под-окна — не определён.
func ATRLikeVol(ticks []models.Tick, windowTicks int) (float64, bool) {
	if windowTicks <= 0 {
		windowTicks = DefaultATRWindowTicks
	}
	if len(ticks) < windowTicks {
		return 0, false
	}
	var sum float64
	n := 0
	for i := 0; i+windowTicks <= len(ticks); i += windowTicks {
		hi := ticks[i].Price
		lo := ticks[i].Price
		for _, t := range ticks[i : i+windowTicks] {
			if t.Price > hi {
				hi = t.Price
			}
			if t.Price < lo {
				lo = t.Price
			}
		}
		sum += hi - lo
		n++
	}
	return sum / float64(n), true
}

// HybridVol = max(std·10, atr·0.2). Именно max: форма с min схлопывается
// в std-слагаемое и перестаёт давать входы.
func HybridVol(stdVol, atrVol float64) float64 {
	return math.Max(stdVol*hybridStdScale, atrVol*hybridATRScale)
}

// Bollinger — полосы VWAP ± k·σ и позиция цены внутри них.
// Позиция NaN, когда полоса вырождена.
func Bollinger(vwap, stdVol, price float64) (upper, middle, lower, position float64) {
	middle = vwap
	upper = vwap + bollingerK*stdVol
	lower = vwap - bollingerK*stdVol
	if upper-lower <= epsBand*price {
		return upper, middle, lower, math.NaN()
	}
	return upper, middle, lower, (price - lower) / (upper - lower)
}

// Momentum — относительное изменение цены от первого тика окна к последнему.
func Momentum(ticks []models.Tick) (float64, bool) {
	if len(ticks) < 2 {
		return 0, false
	}
	start := ticks[0].Price
	if start == 0 {
		return 0, false
	}
	return (ticks[len(ticks)-1].Price - start) / start, true
}

// Snapshot собирает полный срез по окну. Отсутствующие показатели помечены
// Ok=false, их потребитель обязан трактовать как HOLD.
func Snapshot(symbol string, window []models.Tick, atrWindowTicks int) models.IndicatorSnapshot {
	snap := models.IndicatorSnapshot{Symbol: symbol, BBPosition: math.NaN()}
	if len(window) == 0 {
		return snap
	}
	last := window[len(window)-1]
	snap.Price = last.Price
	snap.Timestamp = last.Timestamp

	snap.VWAP, snap.VWAPOk = VWAP(window)
	snap.TickVarianceVol, snap.TickVarianceOk = TickVarianceVol(window)
	snap.ATRLikeVol, snap.ATRLikeOk = ATRLikeVol(window, atrWindowTicks)
	if snap.TickVarianceOk && snap.ATRLikeOk {
		snap.HybridVol = HybridVol(snap.TickVarianceVol, snap.ATRLikeVol)
		snap.HybridOk = true
	}
	if snap.VWAPOk && snap.TickVarianceOk {
		snap.BBUpper, snap.BBMiddle, snap.BBLower, snap.BBPosition =
			Bollinger(snap.VWAP, snap.TickVarianceVol, snap.Price)
	}
	snap.Momentum, snap.MomentumOk = Momentum(window)
	return snap
}
