package service

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"tick_trader/internal/models"
)

const (
	maxAttempts  = 3
	firstBackoff = 100 * time.Millisecond

	DefaultMarketDeadline = 5 * time.Second
	DefaultLimitDeadline  = 30 * time.Second
)

// RetryingGateway оборачивает шлюз ретраями transient-ошибок с экспоненциальным
// бэкоффом внутри дедлайна ордера. Rejected не ретраится; исчерпание попыток
// возвращается как Exhausted.
type RetryingGateway struct {
	inner          Gateway
	marketDeadline time.Duration
	limitDeadline  time.Duration
}

func NewRetryingGateway(inner Gateway, marketDeadline, limitDeadline time.Duration) *RetryingGateway {
	if marketDeadline <= 0 {
		marketDeadline = DefaultMarketDeadline
	}
	if limitDeadline <= 0 {
		limitDeadline = DefaultLimitDeadline
	}
	return &RetryingGateway{inner: inner, marketDeadline: marketDeadline, limitDeadline: limitDeadline}
}

func (g *RetryingGateway) PlaceMarket(ctx context.Context, symbol string, side models.Side, quantity float64) (Fill, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gateway.place_market")
	span.SetTag("symbol", symbol)
	span.SetTag("side", string(side))
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, g.marketDeadline)
	defer cancel()
	return g.withRetry(ctx, func() (Fill, error) {
		return g.inner.PlaceMarket(ctx, symbol, side, quantity)
	})
}

func (g *RetryingGateway) PlaceLimit(ctx context.Context, symbol string, side models.Side, quantity, price float64) (Fill, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gateway.place_limit")
	span.SetTag("symbol", symbol)
	span.SetTag("side", string(side))
	span.SetTag("price", price)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, g.limitDeadline)
	defer cancel()
	return g.withRetry(ctx, func() (Fill, error) {
		return g.inner.PlaceLimit(ctx, symbol, side, quantity, price)
	})
}

func (g *RetryingGateway) withRetry(ctx context.Context, place func() (Fill, error)) (Fill, error) {
	backoff := firstBackoff
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fill, err := place()
		if err == nil {
			return fill, nil
		}
		lastErr = err
		switch KindOf(err) {
		case KindTransient:
			// ретраим внутри дедлайна
		default:
			return Fill{}, err
		}

		select {
		case <-ctx.Done():
			return Fill{}, NewOrderError(KindTimeout, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return Fill{}, NewOrderError(KindExhausted, errors.Wrap(lastErr, "retries exhausted"))
}

var _ Gateway = (*RetryingGateway)(nil)
