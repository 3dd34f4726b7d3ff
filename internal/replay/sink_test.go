package replay

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"tick_trader/internal/models"
)

func sampleTrade() models.Trade {
	return models.Trade{
		PositionID: "ETHUSDT_LONG_1000",
		Symbol:     "ETHUSDT",
		Side:       models.SideLong,
		Entry:      2481.37,
		EntryTime:  1000,
		Exit:       2502.915,
		ExitTime:   64000,
		Quantity:   0.4028973,
		Leverage:   10,
		ExitReason: models.ExitTrailingStop,
		GrossPnL:   86.2731907,
		FeesPaid:   2.0081,
		NetPnL:     84.2650907,
	}
}

// Сериализация сделки и обратное чтение дают тот же рекорд бит в бит.
func TestTradeRecord_RoundTrip(t *testing.T) {
	orig := sampleTrade()

	raw, err := sonic.Marshal(orig)
	require.NoError(t, err)

	var back models.Trade
	require.NoError(t, sonic.Unmarshal(raw, &back))

	if !reflect.DeepEqual(orig, back) {
		t.Fatalf("round trip mismatch:\n  orig %+v\n  back %+v", orig, back)
	}
}

func TestTradeSink_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")

	sink, err := NewTradeSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.AppendTrade(context.Background(), sampleTrade()))
	require.NoError(t, sink.AppendTrade(context.Background(), sampleTrade()))
	require.NoError(t, sink.Close())

	lines, err := readLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	var tr models.Trade
	require.NoError(t, sonic.Unmarshal([]byte(lines[0]), &tr))
	require.Equal(t, sampleTrade(), tr)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if len(sc.Bytes()) > 0 {
			out = append(out, sc.Text())
		}
	}
	return out, sc.Err()
}
