package ledger

import "tick_trader/internal/models"

// FeeConfig — комиссии и слиппедж раунд-трипа.
// Ставки — доли (0.0005 == 0.05%).
type FeeConfig struct {
	TakerFeeRate float64
	MakerFeeRate float64
	SlippagePct  float64
}

func DefaultFees() FeeConfig {
	return FeeConfig{
		TakerFeeRate: 0.0005,
		MakerFeeRate: 0.0002,
		SlippagePct:  0.0001,
	}
}

func (f FeeConfig) Rate(maker bool) float64 {
	if maker {
		return f.MakerFeeRate
	}
	return f.TakerFeeRate
}

// ComputeTrade закрывает позицию в сделку. Слиппедж применяется к обеим
// ногам внутри gross, комиссия считается от номиналов входа и выхода.
// NetPnL = GrossPnL − FeesPaid всегда, любые отчётные цифры считаются от net.
func ComputeTrade(
	p models.Position,
	exitPrice float64,
	exitMs int64,
	reason models.ExitReason,
	fees FeeConfig,
	maker bool,
) models.Trade {
	lev := float64(p.Leverage)
	slip := fees.SlippagePct

	var gross, grossNoSlip float64
	if p.Side == models.SideLong {
		gross = (exitPrice*(1-slip) - p.Entry*(1+slip)) * p.Quantity * lev
		grossNoSlip = (exitPrice - p.Entry) * p.Quantity * lev
	} else {
		gross = (p.Entry*(1-slip) - exitPrice*(1+slip)) * p.Quantity * lev
		grossNoSlip = (p.Entry - exitPrice) * p.Quantity * lev
	}

	fee := (p.Entry + exitPrice) * p.Quantity * fees.Rate(maker)

	return models.Trade{
		PositionID:   p.ID,
		Symbol:       p.Symbol,
		Side:         p.Side,
		Entry:        p.Entry,
		EntryTime:    p.EntryTime,
		Exit:         exitPrice,
		ExitTime:     exitMs,
		Quantity:     p.Quantity,
		Leverage:     p.Leverage,
		ExitReason:   reason,
		GrossPnL:     gross,
		FeesPaid:     fee,
		SlippageCost: grossNoSlip - gross,
		NetPnL:       gross - fee,
	}
}
