package helper

import (
	"fmt"
	"strings"
)

func PosKey(symbol string, side string) string { return symbol + ":" + strings.ToUpper(side) }

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PositionID — детерминированный идентификатор позиции: символ, сторона,
// время входа. В реплее два прогона дают одинаковые id.
func PositionID(symbol string, side string, entryMs int64) string {
	return fmt.Sprintf("%s_%s_%d", symbol, strings.ToUpper(side), entryMs)
}
