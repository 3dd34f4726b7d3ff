package replay

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"tick_trader/internal/models"
)

// TradeSink пишет журнал закрытых сделок в JSONL. Снапшот открытых позиций
// реплею не нужен — это ровно один прогон без резюма.
type TradeSink struct {
	w      *bufio.Writer
	closer io.Closer
}

func NewTradeSink(path string) (*TradeSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create trade sink")
	}
	return &TradeSink{w: bufio.NewWriter(f), closer: f}, nil
}

func (s *TradeSink) AppendTrade(_ context.Context, t models.Trade) error {
	raw, err := sonic.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "marshal trade")
	}
	if _, err := s.w.Write(raw); err != nil {
		return errors.Wrap(err, "write trade")
	}
	return errors.Wrap(s.w.WriteByte('\n'), "write trade")
}

func (s *TradeSink) SaveOpenPositions(context.Context, []models.Position) error { return nil }

func (s *TradeSink) Close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.closer.Close()
		return errors.Wrap(err, "flush trade sink")
	}
	return errors.Wrap(s.closer.Close(), "close trade sink")
}
