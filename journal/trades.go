package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rustyeddy/positions/pkg/id"
	"github.com/rustyeddy/positions/trade"
)

const tradeColumns = `id, external_id, account_id, broker, symbol, instrument_id, asset_type,
	action, side, quantity, price, fees, multiplier, executed_at, position_key`

// InsertTrades stores new executions. Each record is normalized first, and
// one whose (account, external id) is already present is ignored, which
// makes re-importing a broker export harmless. It returns the number of
// rows actually inserted.
func (s *Store) InsertTrades(ctx context.Context, records []trade.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, retryable(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, external_id) DO NOTHING`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		r = trade.Normalize(r)
		if r.ID == "" {
			r.ID = id.New()
		}
		if r.ExternalID == "" {
			r.ExternalID = r.ID
		}

		res, err := stmt.ExecContext(ctx,
			r.ID, r.ExternalID, r.AccountID, r.Broker, r.Symbol, r.InstrumentID,
			string(r.AssetType), r.Action, r.Side.String(),
			r.Quantity, r.Price, r.Fees, r.Multiplier,
			r.Timestamp.UTC(), nullString(r.PositionKey),
		)
		if err != nil {
			return 0, fmt.Errorf("insert trade %s: %w", r.ExternalID, retryable(err))
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, retryable(err)
	}
	slog.Debug("trades stored", "received", len(records), "inserted", inserted)
	return inserted, nil
}

// GetTrade returns a single trade by internal id.
func (s *Store) GetTrade(ctx context.Context, tradeID string) (trade.Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+tradeColumns+` FROM trades WHERE id = ?`), tradeID)

	r, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trade.Record{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return trade.Record{}, err
	}
	return r, nil
}

// ListTrades returns the trades of accountID, or of every account when it
// is empty, in execution order.
func (s *Store) ListTrades(ctx context.Context, accountID string) ([]trade.Record, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades`
	var args []any
	if accountID != "" {
		q += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	q += ` ORDER BY executed_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	return scanTrades(rows)
}

// ListTradesBetween returns trades executed within [start, end).
func (s *Store) ListTradesBetween(ctx context.Context, start, end time.Time) ([]trade.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+tradeColumns+` FROM trades
		WHERE executed_at >= ? AND executed_at < ?
		ORDER BY executed_at ASC, id ASC`), start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return scanTrades(rows)
}

// Groups returns every (account, instrument) stream present in the log.
func (s *Store) Groups(ctx context.Context) ([]trade.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT account_id,
			CASE WHEN instrument_id <> '' THEN instrument_id ELSE symbol END AS instrument
		FROM trades
		ORDER BY account_id, instrument`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trade.Group
	for rows.Next() {
		var g trade.Group
		if err := rows.Scan(&g.AccountID, &g.Instrument); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteTrades removes trades by internal id. Tag links left without any
// trade are not touched; prune them afterwards.
func (s *Store) DeleteTrades(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, v := range ids {
		args[i] = v
	}
	q := `DELETE FROM trades WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`

	res, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return 0, retryable(err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(row scanner) (trade.Record, error) {
	var (
		r         trade.Record
		assetType string
		side      string
		key       sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.ExternalID, &r.AccountID, &r.Broker, &r.Symbol, &r.InstrumentID,
		&assetType, &r.Action, &side,
		&r.Quantity, &r.Price, &r.Fees, &r.Multiplier,
		&r.Timestamp, &key,
	)
	if err != nil {
		return trade.Record{}, err
	}
	r.AssetType = trade.AssetType(assetType)
	r.Side = trade.ParseSide(side)
	r.Timestamp = r.Timestamp.UTC()
	r.PositionKey = key.String
	return r, nil
}

func scanTrades(rows *sql.Rows) ([]trade.Record, error) {
	defer rows.Close()

	var out []trade.Record
	for rows.Next() {
		r, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
