package fifo

import (
	"time"

	"github.com/rustyeddy/positions/tags"
	"github.com/rustyeddy/positions/trade"
	"github.com/shopspring/decimal"
)

// Direction is the side of the inventory a lot or closed trade belonged to.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Lot is one open tranche of a position. Lots only live for the duration
// of a single reduction.
type Lot struct {
	TradeID          string
	AccountID        string
	Broker           string
	Symbol           string
	AssetType        trade.AssetType
	Direction        Direction
	Quantity         decimal.Decimal // remaining, always positive
	OriginalQuantity decimal.Decimal
	Price            decimal.Decimal
	OpenedAt         time.Time
	Multiplier       decimal.Decimal
	PositionKey      string
}

// ClosedTrade is a realized match of (part of) a lot against an opposing
// execution, or against expiry.
type ClosedTrade struct {
	AccountID    string
	Broker       string
	Symbol       string
	AssetType    trade.AssetType
	Direction    Direction
	Quantity     decimal.Decimal
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	OpenedAt     time.Time
	ClosedAt     time.Time
	PnL          decimal.Decimal
	Fees         decimal.Decimal
	Multiplier   decimal.Decimal
	PositionKey  string
	OpenTradeID  string
	CloseTradeID string // empty for expiries
	Expired      bool
	Tags         []tags.Tag
}

// OpenPosition is a residual lot as reported to callers. Quantity is
// negative for shorts.
type OpenPosition struct {
	AccountID   string
	Broker      string
	Symbol      string
	AssetType   trade.AssetType
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	OpenedAt    time.Time
	Notional    decimal.Decimal
	Multiplier  decimal.Decimal
	TradeID     string
	PositionKey string
	Tags        []tags.Tag
}

// Position converts a residual lot into its reported form.
func (l Lot) Position() OpenPosition {
	qty := l.Quantity
	if l.Direction == Short {
		qty = qty.Neg()
	}
	return OpenPosition{
		AccountID:   l.AccountID,
		Broker:      l.Broker,
		Symbol:      l.Symbol,
		AssetType:   l.AssetType,
		Quantity:    qty,
		EntryPrice:  l.Price,
		OpenedAt:    l.OpenedAt,
		Notional:    qty.Mul(l.Price).Mul(l.Multiplier),
		Multiplier:  l.Multiplier,
		TradeID:     l.TradeID,
		PositionKey: l.PositionKey,
	}
}

// Notional is quantity × price × multiplier of the remaining lot.
func (l Lot) Notional() decimal.Decimal {
	return l.Quantity.Mul(l.Price).Mul(l.Multiplier)
}
