package service

import (
	"context"
	"errors"
	"fmt"

	"tick_trader/internal/models"
)

// Fill — исполнение ордера. Price — референсная цена исполнения без
// слиппеджа: слиппедж применяется один раз, в учёте PnL.
type Fill struct {
	Price     float64
	Timestamp int64 // ms
	FeeRate   float64
	Maker     bool
}

type ErrorKind string

const (
	KindTransient       ErrorKind = "TRANSIENT"
	KindRejected        ErrorKind = "REJECTED"
	KindUnfilledTimeout ErrorKind = "UNFILLED_TIMEOUT"
	KindTimeout         ErrorKind = "TIMEOUT"
	KindExhausted       ErrorKind = "EXHAUSTED"
)

// OrderError — типизированная ошибка ордера. Transient ретраится,
// Rejected — нет, Exhausted — ретраи кончились.
type OrderError struct {
	Kind ErrorKind
	Err  error
}

func (e *OrderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("order error: %s", e.Kind)
	}
	return fmt.Sprintf("order error: %s: %v", e.Kind, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

func NewOrderError(kind ErrorKind, err error) *OrderError {
	return &OrderError{Kind: kind, Err: err}
}

// KindOf достаёт вид ошибки; не-ордерные ошибки считаем transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindTransient
}

// Gateway — шлюз исполнения. Он ничего не знает о позициях, PnL и стопах;
// единственный авторитет по цене исполнения.
type Gateway interface {
	PlaceMarket(ctx context.Context, symbol string, side models.Side, quantity float64) (Fill, error)
	PlaceLimit(ctx context.Context, symbol string, side models.Side, quantity, price float64) (Fill, error)
}
