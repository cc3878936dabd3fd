package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rustyeddy/positions/identity"
	"github.com/rustyeddy/positions/trade"
)

// InGroupTx runs fn in one transaction covering group g. On SQLite the
// transaction holds the database write lock from its first statement; on
// Postgres GroupTrades locks the group's rows. Lock contention is reported
// as identity.ErrRetryable.
func (s *Store) InGroupTx(ctx context.Context, g trade.Group, fn func(identity.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return retryable(err)
	}
	defer tx.Rollback()

	if err := fn(&groupTx{s: s, tx: tx}); err != nil {
		return retryable(err)
	}
	if err := tx.Commit(); err != nil {
		return retryable(err)
	}
	return nil
}

type groupTx struct {
	s  *Store
	tx *sql.Tx
}

func (g *groupTx) GroupTrades(ctx context.Context, grp trade.Group) ([]trade.Record, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades
		WHERE account_id = ?
		AND ((instrument_id <> '' AND instrument_id = ?) OR (instrument_id = '' AND symbol = ?))
		ORDER BY executed_at ASC, id ASC`
	if g.s.driver == Postgres {
		q += ` FOR UPDATE`
	}

	rows, err := g.tx.QueryContext(ctx, g.s.rebind(q), grp.AccountID, grp.Instrument, grp.Instrument)
	if err != nil {
		return nil, err
	}
	return scanTrades(rows)
}

func (g *groupTx) SetPositionKeys(ctx context.Context, updates []identity.Update) error {
	stmt, err := g.tx.PrepareContext(ctx, g.s.rebind(`UPDATE trades SET position_key = ? WHERE id = ?`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, nullString(u.Key), u.TradeID); err != nil {
			return fmt.Errorf("set key of %s: %w", u.TradeID, err)
		}
	}
	return nil
}
