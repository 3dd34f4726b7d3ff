package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tick_trader/internal/models"
)

func fees() FeeConfigView {
	return FeeConfigView{TakerFeeRate: 0.0005, MakerFeeRate: 0.0002}
}

func TestPlaceMarket_FillsAtMark(t *testing.T) {
	g := NewPaperGateway(fees())
	g.MarkPrice("ETHUSDT", 2500.5, 1000)

	fill, err := g.PlaceMarket(context.Background(), "ETHUSDT", models.SideLong, 1)
	require.NoError(t, err)
	assert.Equal(t, 2500.5, fill.Price)
	assert.Equal(t, int64(1000), fill.Timestamp)
	assert.Equal(t, 0.0005, fill.FeeRate)
	assert.False(t, fill.Maker)
}

func TestPlaceMarket_NoMarkIsRejected(t *testing.T) {
	g := NewPaperGateway(fees())
	_, err := g.PlaceMarket(context.Background(), "ETHUSDT", models.SideLong, 1)
	require.Error(t, err)
	assert.Equal(t, KindRejected, KindOf(err))
}

func TestPlaceLimit_ImmediateCross(t *testing.T) {
	g := NewPaperGateway(fees())
	g.MarkPrice("ETHUSDT", 99, 1000)

	// покупка лимитом 100 при рынке 99 — уже пересечены
	fill, err := g.PlaceLimit(context.Background(), "ETHUSDT", models.SideLong, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fill.Price)
	assert.True(t, fill.Maker)
	assert.Equal(t, 0.0002, fill.FeeRate)
}

func TestPlaceLimit_FillsWhenFutureTickCrosses(t *testing.T) {
	g := NewPaperGateway(fees())
	g.MarkPrice("ETHUSDT", 101, 1000)

	done := make(chan Fill, 1)
	go func() {
		fill, err := g.PlaceLimit(context.Background(), "ETHUSDT", models.SideLong, 1, 100)
		if err == nil {
			done <- fill
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	g.MarkPrice("ETHUSDT", 99.5, 2000)

	select {
	case fill, ok := <-done:
		require.True(t, ok, "limit must fill on the crossing tick")
		assert.Equal(t, 100.0, fill.Price)
		assert.Equal(t, int64(2000), fill.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("limit order did not fill")
	}
}

func TestPlaceLimit_UnfilledTimeout(t *testing.T) {
	g := NewPaperGateway(fees())
	g.MarkPrice("ETHUSDT", 101, 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.PlaceLimit(ctx, "ETHUSDT", models.SideLong, 1, 100)
	require.Error(t, err)
	assert.Equal(t, KindUnfilledTimeout, KindOf(err))
}

func TestFailOrder_TargetsNthOrder(t *testing.T) {
	g := NewPaperGateway(fees())
	g.MarkPrice("ETHUSDT", 100, 1000)
	g.FailOrder(2, NewOrderError(KindRejected, errors.New("insufficient balance")))

	_, err := g.PlaceMarket(context.Background(), "ETHUSDT", models.SideLong, 1)
	require.NoError(t, err, "first order passes")

	_, err = g.PlaceMarket(context.Background(), "ETHUSDT", models.SideShort, 1)
	require.Error(t, err, "second order fails")
	assert.Equal(t, KindRejected, KindOf(err))

	_, err = g.PlaceMarket(context.Background(), "ETHUSDT", models.SideShort, 1)
	require.NoError(t, err, "injection is one-shot")
}

// фейковый шлюз для проверки ретраев
type flakyGateway struct {
	failures int
	calls    int
	kind     ErrorKind
}

func (f *flakyGateway) PlaceMarket(ctx context.Context, symbol string, side models.Side, qty float64) (Fill, error) {
	f.calls++
	if f.calls <= f.failures {
		return Fill{}, NewOrderError(f.kind, errors.New("boom"))
	}
	return Fill{Price: 100, Timestamp: 1}, nil
}

func (f *flakyGateway) PlaceLimit(ctx context.Context, symbol string, side models.Side, qty, price float64) (Fill, error) {
	return f.PlaceMarket(ctx, symbol, side, qty)
}

func TestRetry_TransientRecovers(t *testing.T) {
	inner := &flakyGateway{failures: 2, kind: KindTransient}
	g := NewRetryingGateway(inner, 5*time.Second, 30*time.Second)

	fill, err := g.PlaceMarket(context.Background(), "ETHUSDT", models.SideLong, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fill.Price)
	assert.Equal(t, 3, inner.calls)
}

func TestRetry_RejectedNotRetried(t *testing.T) {
	inner := &flakyGateway{failures: 10, kind: KindRejected}
	g := NewRetryingGateway(inner, 5*time.Second, 30*time.Second)

	_, err := g.PlaceMarket(context.Background(), "ETHUSDT", models.SideLong, 1)
	require.Error(t, err)
	assert.Equal(t, KindRejected, KindOf(err))
	assert.Equal(t, 1, inner.calls)
}

func TestRetry_ExhaustedAfterMaxAttempts(t *testing.T) {
	inner := &flakyGateway{failures: 10, kind: KindTransient}
	g := NewRetryingGateway(inner, 5*time.Second, 30*time.Second)

	_, err := g.PlaceMarket(context.Background(), "ETHUSDT", models.SideLong, 1)
	require.Error(t, err)
	assert.Equal(t, KindExhausted, KindOf(err))
	assert.Equal(t, 3, inner.calls)
}
