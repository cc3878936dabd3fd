package trade

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Right is the call/put flag of an option contract.
type Right string

const (
	Call Right = "C"
	Put  Right = "P"
)

// Contract is the parsed form of an option symbol.
type Contract struct {
	Root       string
	Expiration time.Time // UTC midnight of the expiration day
	Right      Right
	Strike     decimal.Decimal
}

// Expired reports whether the contract's expiration day has fully passed
// at now.
func (c Contract) Expired(now time.Time) bool {
	return !now.Before(c.Expiration.Add(24 * time.Hour))
}

var (
	// OCC: root padded to six, YYMMDD, C or P, strike times 1000 in 8 digits.
	occSymbol = regexp.MustCompile(`^[.\-]?([A-Z0-9.]{1,6})\s*(\d{6})([CP])(\d{8})$`)
	// Display form: "AAPL 01/19/2024 150.00 C".
	displaySymbol = regexp.MustCompile(`^([A-Z0-9.]{1,6})\s+(\d{2}/\d{2}/\d{4})\s+(\d+(?:\.\d+)?)\s+([CP])(?:ALL|UT)?$`)
)

// ParseOption extracts the contract terms from an option symbol in OCC or
// display form.
func ParseOption(symbol string) (Contract, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	if m := occSymbol.FindStringSubmatch(s); m != nil {
		exp, err := time.Parse("060102", m[2])
		if err != nil {
			return Contract{}, fmt.Errorf("option %q: expiration: %w", symbol, err)
		}
		strike, err := decimal.NewFromString(m[4])
		if err != nil {
			return Contract{}, fmt.Errorf("option %q: strike: %w", symbol, err)
		}
		return Contract{
			Root:       m[1],
			Expiration: exp.UTC(),
			Right:      Right(m[3]),
			Strike:     strike.Shift(-3),
		}, nil
	}

	if m := displaySymbol.FindStringSubmatch(s); m != nil {
		exp, err := time.Parse("01/02/2006", m[2])
		if err != nil {
			return Contract{}, fmt.Errorf("option %q: expiration: %w", symbol, err)
		}
		strike, err := decimal.NewFromString(m[3])
		if err != nil {
			return Contract{}, fmt.Errorf("option %q: strike: %w", symbol, err)
		}
		return Contract{
			Root:       m[1],
			Expiration: exp.UTC(),
			Right:      Right(m[4]),
			Strike:     strike,
		}, nil
	}

	return Contract{}, fmt.Errorf("option %q: unrecognised symbol format", symbol)
}
