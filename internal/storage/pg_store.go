package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"tick_trader/internal/models"
	"tick_trader/pkg/db"
)

// PgStore персистит ровно две вещи: append-only журнал закрытых сделок и
// снапшот открытых позиций (перезаписывается целиком) для резюма после
// рестарта. Тики движок не персистит.
//
// Схема:
//
//	CREATE TABLE closed_trades (
//	    position_id   text PRIMARY KEY,
//	    symbol        text NOT NULL,
//	    side          text NOT NULL,
//	    entry_time    bigint NOT NULL,
//	    entry_price   double precision NOT NULL,
//	    exit_time     bigint NOT NULL,
//	    exit_price    double precision NOT NULL,
//	    quantity      double precision NOT NULL,
//	    leverage      int NOT NULL,
//	    gross_pnl     double precision NOT NULL,
//	    fees_paid     double precision NOT NULL,
//	    net_pnl       double precision NOT NULL,
//	    exit_reason   text NOT NULL
//	);
//
//	CREATE TABLE open_positions (
//	    position_id   text PRIMARY KEY,
//	    symbol        text NOT NULL,
//	    side          text NOT NULL,
//	    entry_time    bigint NOT NULL,
//	    entry_price   double precision NOT NULL,
//	    quantity      double precision NOT NULL,
//	    leverage      int NOT NULL,
//	    extreme_price double precision NOT NULL,
//	    stop_price    double precision NOT NULL
//	);
type PgStore struct {
	m *db.PgTxManager
}

func NewPgStore(m *db.PgTxManager) *PgStore {
	return &PgStore{m: m}
}

func (s *PgStore) AppendTrade(ctx context.Context, t models.Trade) error {
	err := s.m.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO closed_trades (
				position_id, symbol, side, entry_time, entry_price,
				exit_time, exit_price, quantity, leverage,
				gross_pnl, fees_paid, net_pnl, exit_reason
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			t.PositionID, t.Symbol, string(t.Side), t.EntryTime, t.Entry,
			t.ExitTime, t.Exit, t.Quantity, t.Leverage,
			t.GrossPnL, t.FeesPaid, t.NetPnL, string(t.ExitReason),
		)
		return err
	})
	return errors.Wrap(err, "append closed trade")
}

func (s *PgStore) SaveOpenPositions(ctx context.Context, open []models.Position) error {
	err := s.m.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctxTx, `DELETE FROM open_positions`); err != nil {
			return err
		}
		for _, p := range open {
			_, err := tx.Exec(ctxTx, `
				INSERT INTO open_positions (
					position_id, symbol, side, entry_time, entry_price,
					quantity, leverage, extreme_price, stop_price
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				p.ID, p.Symbol, string(p.Side), p.EntryTime, p.Entry,
				p.Quantity, p.Leverage, p.Extreme, p.Stop,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "save open positions snapshot")
}

// LoadOpenPositions — снапшот для резюма: позиции не сглаживаются на
// шатдауне и продолжают вестись после рестарта.
func (s *PgStore) LoadOpenPositions(ctx context.Context) ([]models.Position, error) {
	var out []models.Position
	err := s.m.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
			SELECT position_id, symbol, side, entry_time, entry_price,
			       quantity, leverage, extreme_price, stop_price
			FROM open_positions ORDER BY symbol, side`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p models.Position
			var side string
			if err := rows.Scan(&p.ID, &p.Symbol, &side, &p.EntryTime, &p.Entry,
				&p.Quantity, &p.Leverage, &p.Extreme, &p.Stop); err != nil {
				return err
			}
			p.Side = models.Side(side)
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, "load open positions")
	}
	return out, nil
}
