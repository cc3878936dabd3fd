// Package trade holds the raw execution record shared by every stage of
// position reconstruction, together with the pieces of it that are derived
// once at ingestion: the side classification, the canonical instrument key
// and the position key formats.
package trade

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetType is the instrument class of a trade.
type AssetType string

const (
	Stock  AssetType = "STOCK"
	Option AssetType = "OPTION"
)

// ParseAssetType maps free text onto an AssetType. Anything that is not
// recognisably an option is a stock.
func ParseAssetType(s string) AssetType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPTION", "OPT", "OPTIONS":
		return Option
	default:
		return Stock
	}
}

// Default contract multipliers used when the broker does not report one.
var (
	StockMultiplier  = decimal.NewFromInt(1)
	OptionMultiplier = decimal.NewFromInt(100)
)

// Record is a single brokerage execution as stored in the trade log.
//
// Records are immutable once ingested except for PositionKey, which only the
// identity assigner writes. An empty PositionKey means the row has not been
// assigned yet.
type Record struct {
	ID           string // internal ULID; lexical order is ingestion order
	ExternalID   string // broker trade id, unique per account
	AccountID    string
	Broker       string
	Symbol       string
	InstrumentID string // optional universal instrument id
	AssetType    AssetType
	Action       string // raw broker code
	Side         Side   // classified from Action at ingestion
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	Fees         decimal.Decimal
	Timestamp    time.Time
	Multiplier   decimal.Decimal
	PositionKey  string
}

// Normalize fills the derived fields of r: the side classification and the
// default multiplier. Ingestion calls it once before a record is stored.
func Normalize(r Record) Record {
	r.Symbol = strings.TrimSpace(r.Symbol)
	r.Action = strings.TrimSpace(r.Action)
	if r.AssetType == "" {
		r.AssetType = Stock
	}
	r.Side = Classify(r.Action, r.Quantity)
	r.Multiplier = r.ContractMultiplier()
	return r
}

// Classified returns the stored side, classifying Action and Quantity when
// the record never went through Normalize.
func (r Record) Classified() Side {
	if r.Side == Unclassified {
		return Classify(r.Action, r.Quantity)
	}
	return r.Side
}

// ContractMultiplier returns the multiplier to apply to per-unit prices,
// falling back to the asset type default when none was recorded.
func (r Record) ContractMultiplier() decimal.Decimal {
	if r.Multiplier.IsPositive() {
		return r.Multiplier
	}
	if r.AssetType == Option {
		return OptionMultiplier
	}
	return StockMultiplier
}

// AbsQuantity is the unsigned execution size.
func (r Record) AbsQuantity() decimal.Decimal {
	return r.Quantity.Abs()
}

// Epsilon is the tolerance below which an inventory is considered flat.
var Epsilon = decimal.New(1, -6)

// IsFlat reports whether q is within Epsilon of zero.
func IsFlat(q decimal.Decimal) bool {
	return q.Abs().LessThanOrEqual(Epsilon)
}
