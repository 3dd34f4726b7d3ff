package models

import "fmt"

type StrategyVariant string

const (
	VariantConservative StrategyVariant = "conservative"
	VariantSelective    StrategyVariant = "selective"
	VariantAggressive   StrategyVariant = "aggressive"
)

// CoinParams — персональные настройки символа, читаются один раз на старте.
// Пороги волатильности заданы долями от цены (0.0008 == 0.08%).
type CoinParams struct {
	Symbol                string          `mapstructure:"symbol" yaml:"symbol"`
	Excluded              bool            `mapstructure:"excluded" yaml:"excluded"`
	Variant               StrategyVariant `mapstructure:"strategy_variant" yaml:"strategy_variant"`
	HybridVolThresholdPct float64         `mapstructure:"hybrid_vol_threshold_pct" yaml:"hybrid_vol_threshold_pct"`
	ATRVolThresholdPct    float64         `mapstructure:"atr_vol_threshold_pct" yaml:"atr_vol_threshold_pct"`
	BBBandMin             float64         `mapstructure:"bb_band_min" yaml:"bb_band_min"`
	BBBandMax             float64         `mapstructure:"bb_band_max" yaml:"bb_band_max"`
	CooldownSeconds       int             `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds"`
	PositionSizeFraction  float64         `mapstructure:"position_size_fraction" yaml:"position_size_fraction"`
	Leverage              int             `mapstructure:"leverage" yaml:"leverage"`
	HardStopATRMultiplier float64         `mapstructure:"hard_stop_atr_multiplier" yaml:"hard_stop_atr_multiplier"`
	MinLossFloorPct       float64         `mapstructure:"min_loss_floor_pct" yaml:"min_loss_floor_pct"`
}

// variantDefaults — базовые числа для каждого варианта. Форма правила одна,
// варианты меняют только пороги (и selective дополнительно требует momentum).
var variantDefaults = map[StrategyVariant]CoinParams{
	VariantConservative: {
		HybridVolThresholdPct: 0.0004,
		ATRVolThresholdPct:    0.0015,
		BBBandMin:             0.40,
		BBBandMax:             0.60,
		CooldownSeconds:       300,
	},
	VariantSelective: {
		HybridVolThresholdPct: 0.0008,
		ATRVolThresholdPct:    0.0030,
		BBBandMin:             0.48,
		BBBandMax:             0.52,
		CooldownSeconds:       300,
	},
	VariantAggressive: {
		HybridVolThresholdPct: 0.0002,
		ATRVolThresholdPct:    0.0010,
		BBBandMin:             0.35,
		BBBandMax:             0.65,
		CooldownSeconds:       180,
	},
}

// ApplyVariantDefaults заполняет незаданные пороги дефолтами варианта.
// Явные значения из файла всегда важнее варианта.
func (p CoinParams) ApplyVariantDefaults() CoinParams {
	if p.Variant == "" {
		p.Variant = VariantConservative
	}
	d, ok := variantDefaults[p.Variant]
	if !ok {
		return p
	}
	if p.HybridVolThresholdPct == 0 {
		p.HybridVolThresholdPct = d.HybridVolThresholdPct
	}
	if p.ATRVolThresholdPct == 0 {
		p.ATRVolThresholdPct = d.ATRVolThresholdPct
	}
	if p.BBBandMin == 0 && p.BBBandMax == 0 {
		p.BBBandMin = d.BBBandMin
		p.BBBandMax = d.BBBandMax
	}
	if p.CooldownSeconds == 0 {
		p.CooldownSeconds = d.CooldownSeconds
	}
	if p.PositionSizeFraction == 0 {
		p.PositionSizeFraction = 0.1
	}
	if p.Leverage == 0 {
		p.Leverage = 10
	}
	if p.HardStopATRMultiplier == 0 {
		p.HardStopATRMultiplier = 2.0
	}
	if p.MinLossFloorPct == 0 {
		p.MinLossFloorPct = 0.01
	}
	return p
}

func (p CoinParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("coin params: empty symbol")
	}
	switch p.Variant {
	case VariantConservative, VariantSelective, VariantAggressive:
	default:
		return fmt.Errorf("%s: unknown strategy_variant %q", p.Symbol, p.Variant)
	}
	if p.BBBandMin >= p.BBBandMax {
		return fmt.Errorf("%s: bb_band_min %.3f >= bb_band_max %.3f", p.Symbol, p.BBBandMin, p.BBBandMax)
	}
	if p.BBBandMin < 0 || p.BBBandMax > 1 {
		return fmt.Errorf("%s: bb band window [%.3f, %.3f] outside [0,1]", p.Symbol, p.BBBandMin, p.BBBandMax)
	}
	if p.HybridVolThresholdPct <= 0 || p.ATRVolThresholdPct <= 0 {
		return fmt.Errorf("%s: volatility thresholds must be positive", p.Symbol)
	}
	if p.CooldownSeconds < 0 {
		return fmt.Errorf("%s: cooldown_seconds < 0", p.Symbol)
	}
	if p.PositionSizeFraction <= 0 || p.PositionSizeFraction > 1 {
		return fmt.Errorf("%s: position_size_fraction %.4f outside (0,1]", p.Symbol, p.PositionSizeFraction)
	}
	if p.Leverage < 1 {
		return fmt.Errorf("%s: leverage %d < 1", p.Symbol, p.Leverage)
	}
	if p.HardStopATRMultiplier < 1.0 {
		return fmt.Errorf("%s: hard_stop_atr_multiplier %.2f < 1.0", p.Symbol, p.HardStopATRMultiplier)
	}
	if p.MinLossFloorPct <= 0 {
		return fmt.Errorf("%s: min_loss_floor_pct must be > 0", p.Symbol)
	}
	return nil
}
