// Package filter narrows reconstructed trades and positions. Every filter
// is pure and keeps the input order.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/positions/fifo"
	"github.com/rustyeddy/positions/tags"
	"github.com/rustyeddy/positions/trade"
)

// TagMode decides how a tag set is matched.
type TagMode string

const (
	All TagMode = "ALL"
	Any TagMode = "ANY"
)

// ParseTagMode accepts "all" or "any" in any case. Empty text is All.
func ParseTagMode(s string) (TagMode, error) {
	switch m := TagMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "", All:
		return All, nil
	case Any:
		return Any, nil
	default:
		return "", fmt.Errorf("unknown tag mode %q", s)
	}
}

// Options selects closed trades and open positions. Zero fields do not
// filter.
type Options struct {
	From      *time.Time
	To        *time.Time
	Symbol    string
	AccountID string
	AssetType trade.AssetType
	TagIDs    []string
	TagMode   TagMode
}

// Closed returns the closed trades matching o. The date window applies to
// the close time.
func Closed(in []fifo.ClosedTrade, o Options, r *tags.Resolver) []fifo.ClosedTrade {
	out := make([]fifo.ClosedTrade, 0, len(in))
	for _, c := range in {
		if !o.inWindow(c.ClosedAt) || !o.matches(c.AccountID, c.Symbol, c.AssetType) {
			continue
		}
		if !o.matchesTags(r.TagIDs(c.AccountID, c.Symbol, c.PositionKey, c.OpenedAt)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Open returns the open positions matching o. The date window applies to
// the open time.
func Open(in []fifo.OpenPosition, o Options, r *tags.Resolver) []fifo.OpenPosition {
	out := make([]fifo.OpenPosition, 0, len(in))
	for _, p := range in {
		if !o.inWindow(p.OpenedAt) || !o.matches(p.AccountID, p.Symbol, p.AssetType) {
			continue
		}
		if !o.matchesTags(r.TagIDs(p.AccountID, p.Symbol, p.PositionKey, p.OpenedAt)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (o Options) inWindow(t time.Time) bool {
	if o.From != nil && t.Before(*o.From) {
		return false
	}
	if o.To != nil && t.After(*o.To) {
		return false
	}
	return true
}

func (o Options) matches(accountID, symbol string, asset trade.AssetType) bool {
	if o.AccountID != "" && o.AccountID != accountID {
		return false
	}
	if o.AssetType != "" && o.AssetType != asset {
		return false
	}
	if o.Symbol != "" && !strings.Contains(strings.ToUpper(symbol), strings.ToUpper(strings.TrimSpace(o.Symbol))) {
		return false
	}
	return true
}

func (o Options) matchesTags(have []string) bool {
	if len(o.TagIDs) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, id := range have {
		set[id] = true
	}

	if strings.EqualFold(string(o.TagMode), string(Any)) {
		for _, id := range o.TagIDs {
			if set[id] {
				return true
			}
		}
		return false
	}

	for _, id := range o.TagIDs {
		if !set[id] {
			return false
		}
	}
	return true
}
