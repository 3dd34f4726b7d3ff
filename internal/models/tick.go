package models

import "time"

// Tick — одна сделка с биржи (aggTrade). Timestamp в миллисекундах,
// внутри одного символа не убывает.
type Tick struct {
	Symbol       string  `json:"symbol"`
	Timestamp    int64   `json:"timestamp"`
	Price        float64 `json:"price"`
	Volume       float64 `json:"volume"`
	IsBuyerMaker bool    `json:"is_buyer_maker,omitempty"`
}

func (t Tick) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// SameTrade — дубль после реконнекта стримера: одинаковые ts/price/volume.
func (t Tick) SameTrade(o Tick) bool {
	return t.Timestamp == o.Timestamp && t.Price == o.Price && t.Volume == o.Volume
}
