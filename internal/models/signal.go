package models

type Action string

const (
	ActionHold      Action = "HOLD"
	ActionEntryBoth Action = "ENTRY_BOTH"
	ActionCloseAll  Action = "CLOSE_ALL"
)

// Signal — решение генератора по символу на текущем срезе индикаторов.
// Strength имеет смысл только для ENTRY_BOTH.
type Signal struct {
	Symbol    string
	Action    Action
	Strength  float64
	Reason    string
	CreatedAt int64 // ms
}

func HoldSignal(symbol string, nowMs int64, reason string) Signal {
	return Signal{Symbol: symbol, Action: ActionHold, Reason: reason, CreatedAt: nowMs}
}
