package trade

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the closed set of effects an execution can have on inventory.
// The zero value means the record has not been classified yet; see
// Record.Classified.
type Side int

const (
	Unclassified Side = iota
	Ignore
	Buy
	Sell
	SplitAdjustment
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case SplitAdjustment:
		return "SPLIT"
	case Unclassified:
		return "UNCLASSIFIED"
	default:
		return "IGNORE"
	}
}

// ParseSide is the inverse of Side.String. Unknown text is Ignore.
func ParseSide(s string) Side {
	switch s {
	case "BUY":
		return Buy
	case "SELL":
		return Sell
	case "SPLIT":
		return SplitAdjustment
	default:
		return Ignore
	}
}

// Changes reports whether the side moves inventory through matching.
func (s Side) Changes() bool {
	return s == Buy || s == Sell
}

var actionSides = map[string]Side{
	"BUY":           Buy,
	"BOT":           Buy,
	"BOUGHT":        Buy,
	"BUY_TO_OPEN":   Buy,
	"BUY_TO_CLOSE":  Buy,
	"BUY_TO_COVER":  Buy,
	"COVER":         Buy,
	"ASSIGNMENT":    Buy,
	"ASSIGNED":      Buy,
	"SELL":          Sell,
	"SLD":           Sell,
	"SOLD":          Sell,
	"SELL_TO_OPEN":  Sell,
	"SELL_TO_CLOSE": Sell,
	"SELL_SHORT":    Sell,
	"SHORT":         Sell,
	"EXERCISE":      Sell,
	"EXERCISED":     Sell,
	"SPLIT":         SplitAdjustment,
	"STOCK_SPLIT":   SplitAdjustment,
	"FORWARD_SPLIT": SplitAdjustment,
	"REVERSE_SPLIT": SplitAdjustment,
}

// Classify maps a broker action code onto a Side. The mapping is total:
// unknown codes and zero quantities are Ignore. Expirations take their
// direction from the sign of the quantity, a positive quantity closing a
// short and a negative one closing a long.
func Classify(action string, qty decimal.Decimal) Side {
	if qty.IsZero() {
		return Ignore
	}

	code := strings.ToUpper(strings.TrimSpace(action))
	code = strings.NewReplacer(" ", "_", "-", "_").Replace(code)

	switch code {
	case "EXPIRATION", "EXPIRED", "EXPIRE":
		if qty.IsPositive() {
			return Buy
		}
		return Sell
	}

	if s, ok := actionSides[code]; ok {
		return s
	}
	return Ignore
}
