package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rustyeddy/positions/fifo"
	"github.com/rustyeddy/positions/trade"
	"github.com/shopspring/decimal"
)

var requiredImportColumns = []string{"account_id", "symbol", "action", "quantity", "price", "executed_at"}

// ReadTradesCSV parses a trade export with a header row. Columns are
// matched by name; unknown columns are ignored. Rows that cannot be parsed
// are logged and counted in bad rather than failing the import.
func ReadTradesCSV(r io.Reader) (records []trade.Record, bad int, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredImportColumns {
		if _, ok := col[name]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", name)
		}
	}

	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, bad, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		rec, err := parseTradeRow(get)
		if err != nil {
			slog.Warn("skipping trade row", "line", line, "err", err)
			bad++
			continue
		}
		records = append(records, rec)
	}
	return records, bad, nil
}

func parseTradeRow(get func(string) string) (trade.Record, error) {
	qty, err := decimal.NewFromString(get("quantity"))
	if err != nil {
		return trade.Record{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := decimal.NewFromString(get("price"))
	if err != nil {
		return trade.Record{}, fmt.Errorf("price: %w", err)
	}
	fees, err := optionalDecimal(get("fees"))
	if err != nil {
		return trade.Record{}, fmt.Errorf("fees: %w", err)
	}
	mult, err := optionalDecimal(get("multiplier"))
	if err != nil {
		return trade.Record{}, fmt.Errorf("multiplier: %w", err)
	}
	at, err := time.Parse(time.RFC3339, get("executed_at"))
	if err != nil {
		return trade.Record{}, fmt.Errorf("executed_at: %w", err)
	}
	if get("account_id") == "" || get("symbol") == "" {
		return trade.Record{}, errors.New("account_id and symbol are required")
	}

	return trade.Normalize(trade.Record{
		ExternalID:   get("external_id"),
		AccountID:    get("account_id"),
		Broker:       get("broker"),
		Symbol:       get("symbol"),
		InstrumentID: get("instrument_id"),
		AssetType:    trade.ParseAssetType(get("asset_type")),
		Action:       get("action"),
		Quantity:     qty,
		Price:        price,
		Fees:         fees,
		Multiplier:   mult,
		Timestamp:    at.UTC(),
	}), nil
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

var closedHeader = []string{
	"account_id", "symbol", "asset_type", "direction", "quantity", "entry_price", "exit_price",
	"opened_at", "closed_at", "realized_pl", "fees", "position_key", "tags",
}

// WriteClosedCSV writes closed trades with a header row.
func WriteClosedCSV(w io.Writer, closed []fifo.ClosedTrade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(closedHeader); err != nil {
		return err
	}

	for _, c := range closed {
		names := make([]string, 0, len(c.Tags))
		for _, t := range c.Tags {
			names = append(names, t.Name)
		}
		if err := cw.Write([]string{
			c.AccountID,
			c.Symbol,
			string(c.AssetType),
			string(c.Direction),
			c.Quantity.String(),
			c.EntryPrice.String(),
			c.ExitPrice.String(),
			c.OpenedAt.UTC().Format(time.RFC3339),
			c.ClosedAt.UTC().Format(time.RFC3339),
			c.PnL.StringFixed(2),
			c.Fees.StringFixed(2),
			c.PositionKey,
			strings.Join(names, ";"),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
