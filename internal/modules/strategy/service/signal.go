package service

import (
	"fmt"
	"math"

	"tick_trader/internal/helper"
	"tick_trader/internal/models"
)

const (
	// минимальная сила сигнала для входа
	minEntryStrength = 0.5

	// selective требует подтверждения импульсом
	minMomentumAbs = 1e-4

	// правило закрытия: коллапс волатильности и экстремумы полосы
	volCollapseRatio = 0.1
	bbExtremeLow     = 0.1
	bbExtremeHigh    = 0.9
)

// Generator решает по срезу индикаторов, входить ли стрэддлом, закрывать ли
// всё или держать. Состояния у генератора нет: кулдаун и открытые позиции
// принадлежат воркеру символа и передаются аргументами.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Evaluate — одна точка входа. lastEntryMs == 0 значит входов ещё не было.
func (g *Generator) Evaluate(
	snap models.IndicatorSnapshot,
	p models.CoinParams,
	nowMs int64,
	lastEntryMs int64,
	openCount int,
) models.Signal {
	// выход проверяем первым: трейлинг управляет обычными выходами,
	// а сюда попадают только аварийные (коллапс волы, края полосы)
	if openCount > 0 {
		if sig, ok := g.closeSignal(snap, nowMs); ok {
			return sig
		}
	}

	if p.Excluded {
		return models.HoldSignal(snap.Symbol, nowMs, "excluded")
	}
	if openCount > 0 {
		return models.HoldSignal(snap.Symbol, nowMs, "positions open")
	}

	// любой неопределённый индикатор — HOLD
	if !snap.HybridOk || !snap.ATRLikeOk || !snap.VWAPOk || math.IsNaN(snap.BBPosition) {
		return models.HoldSignal(snap.Symbol, nowMs, "indicators not ready")
	}
	if snap.Price <= 0 {
		return models.HoldSignal(snap.Symbol, nowMs, "bad price")
	}

	if lastEntryMs > 0 && nowMs-lastEntryMs < int64(p.CooldownSeconds)*1000 {
		return models.HoldSignal(snap.Symbol, nowMs, "cooldown")
	}

	hybridPct := snap.HybridVol / snap.Price
	atrPct := snap.ATRLikeVol / snap.Price
	if hybridPct < p.HybridVolThresholdPct {
		return models.HoldSignal(snap.Symbol, nowMs, "hybrid vol below threshold")
	}
	if atrPct < p.ATRVolThresholdPct {
		return models.HoldSignal(snap.Symbol, nowMs, "atr vol below threshold")
	}
	if snap.BBPosition < p.BBBandMin || snap.BBPosition > p.BBBandMax {
		return models.HoldSignal(snap.Symbol, nowMs, "price off band center")
	}
	if p.Variant == models.VariantSelective {
		if !snap.MomentumOk || math.Abs(snap.Momentum) < minMomentumAbs {
			return models.HoldSignal(snap.Symbol, nowMs, "no momentum confirmation")
		}
	}

	strength := entryStrength(snap, p, atrPct)
	if strength < minEntryStrength {
		return models.HoldSignal(snap.Symbol, nowMs, fmt.Sprintf("weak signal %.2f", strength))
	}

	return models.Signal{
		Symbol:   snap.Symbol,
		Action:   models.ActionEntryBoth,
		Strength: strength,
		Reason: fmt.Sprintf("H:%.4f%% A:%.4f%% BB:%.3f M:%.6f S:%.2f",
			hybridPct*100, atrPct*100, snap.BBPosition, snap.Momentum, strength),
		CreatedAt: nowMs,
	}
}

// entryStrength = 0.5·сжатие полосы + 0.5·раскрытие ATR. Оба порога берутся
// из настроек символа: глобальные константы здесь молча отфильтровали бы
// низковолатильные монеты.
func entryStrength(snap models.IndicatorSnapshot, p models.CoinParams, atrPct float64) float64 {
	bandThreshold := p.BBBandMax - p.BBBandMin
	var compression float64
	if snap.BBMiddle > 0 && bandThreshold > 0 {
		bandwidth := (snap.BBUpper - snap.BBLower) / snap.BBMiddle
		compression = helper.Clamp((bandThreshold-bandwidth)/bandThreshold, 0, 1)
	}
	expansion := helper.Clamp(atrPct/p.ATRVolThresholdPct, 0, 1)
	return 0.5*compression + 0.5*expansion
}

func (g *Generator) closeSignal(snap models.IndicatorSnapshot, nowMs int64) (models.Signal, bool) {
	if snap.HybridOk && snap.ATRLikeOk && snap.HybridVol < volCollapseRatio*snap.ATRLikeVol {
		return models.Signal{
			Symbol:    snap.Symbol,
			Action:    models.ActionCloseAll,
			Reason:    fmt.Sprintf("volatility collapsed (%.6f < 0.1·%.6f)", snap.HybridVol, snap.ATRLikeVol),
			CreatedAt: nowMs,
		}, true
	}
	if !math.IsNaN(snap.BBPosition) && (snap.BBPosition < bbExtremeLow || snap.BBPosition > bbExtremeHigh) {
		return models.Signal{
			Symbol:    snap.Symbol,
			Action:    models.ActionCloseAll,
			Reason:    fmt.Sprintf("extreme band excursion (%.3f)", snap.BBPosition),
			CreatedAt: nowMs,
		}, true
	}
	return models.Signal{}, false
}
