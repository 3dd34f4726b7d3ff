package models

// IndicatorSnapshot — срез индикаторов по окну тикового буфера.
// Для каждого показателя отдельный Ok-флаг: мало тиков — показатель
// не определён, и генератор сигналов обязан вернуть HOLD.
type IndicatorSnapshot struct {
	Symbol    string
	Price     float64
	Timestamp int64 // ms, время последнего тика окна

	VWAP   float64
	VWAPOk bool

	TickVarianceVol float64
	TickVarianceOk  bool

	ATRLikeVol float64
	ATRLikeOk  bool

	HybridVol float64
	HybridOk  bool

	BBUpper  float64
	BBMiddle float64
	BBLower  float64
	// BBPosition = NaN когда полоса вырождена (upper−lower ≤ ε·price).
	BBPosition float64

	Momentum   float64
	MomentumOk bool
}

// OpenPositionView — открытая позиция с нереализованным PnL по последнему тику.
type OpenPositionView struct {
	Symbol            string  `json:"symbol"`
	Side              Side    `json:"side"`
	Entry             float64 `json:"entry_price"`
	MarkPrice         float64 `json:"mark_price"`
	Quantity          float64 `json:"quantity"`
	Leverage          int     `json:"leverage"`
	Stop              float64 `json:"stop_price"`
	UnrealizedPnL     float64 `json:"unrealized_pnl"`
	HoldingTimeSecond int64   `json:"holding_seconds"`
}

// SymbolStats — агрегаты по символу из журнала закрытых сделок.
type SymbolStats struct {
	Symbol        string  `json:"symbol"`
	Trades        int     `json:"trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	GrossPnL      float64 `json:"gross_pnl"`
	NetPnL        float64 `json:"net_pnl"`
	FeesPaid      float64 `json:"fees_paid"`
	LastEntryTime int64   `json:"last_entry_time"`
}

// PerformanceSnapshot — производительность на текущий момент.
// Все доходности считаются от NetPnL, комиссия никогда не опускается.
type PerformanceSnapshot struct {
	AccountEquity     float64            `json:"account_equity"`
	InitialEquity     float64            `json:"initial_equity"`
	RealizedNetPnL    float64            `json:"realized_net_pnl"`
	UnrealizedPnL     float64            `json:"unrealized_pnl"`
	TotalReturnPct    float64            `json:"total_return_pct"`
	WinRate           float64            `json:"win_rate"`
	ProfitFactor      float64            `json:"profit_factor"`
	MaxDrawdownPct    float64            `json:"max_drawdown_pct"`
	OpenPositionCount int                `json:"open_position_count"`
	TotalTrades       int                `json:"total_trades"`
	TradesToday       int                `json:"trades_today"`
	TradesPerDay      float64            `json:"trades_per_day"`
	TotalFeesPaid     float64            `json:"total_fees_paid"`
	PerSymbol         []SymbolStats      `json:"per_symbol"`
	OpenPositions     []OpenPositionView `json:"open_positions"`

	// диагностика генератора
	SignalsGenerated       int64 `json:"signals_generated"`
	SignalsSkippedCooldown int64 `json:"signals_skipped_cooldown"`
	SignalsSkippedOpenPos  int64 `json:"signals_skipped_open_positions"`
}
