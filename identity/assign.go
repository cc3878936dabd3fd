// Package identity assigns stable position keys to stored trades.
//
// A position episode runs from the moment inventory leaves flat to the
// moment it returns to flat. Every trade of an episode carries the same
// key, and a key handed to the first trade of an episode is reused verbatim
// on every later run so that tags attached to it are never orphaned.
package identity

import (
	"sort"
	"time"

	"github.com/rustyeddy/positions/trade"
	"github.com/shopspring/decimal"
)

// Update is a position key change for one stored trade.
type Update struct {
	TradeID string
	Key     string
}

// Assign replays the full history of one instrument group and returns the
// key changes needed to bring every trade to its episode's key. Trades
// whose key is already right produce no update, so a second run over
// unchanged input returns nothing.
//
// Precondition for key reuse: a trade that opens an episode and already
// carries a key accepted by trade.ValidKey keeps that key, unless an earlier
// episode of the same replay already took it. That happens when a backfilled
// trade splits a stored episode in two: the earlier half keeps the key and
// the later half gets a fresh one.
func Assign(records []trade.Record) []Update {
	ordered := make([]trade.Record, len(records))
	for i, r := range records {
		r.Side = r.Classified()
		ordered[i] = r
	}
	sortForReplay(ordered)

	var (
		updates   []Update
		inventory = decimal.Zero
		current   string
		used      = make(map[string]bool)
	)

	for _, r := range ordered {
		switch r.Side {
		case trade.Buy, trade.Sell:
			next := inventory.Add(signed(r))
			if trade.IsFlat(inventory) || flipped(inventory, next) {
				current = episodeKey(r, used)
			}
			inventory = next
		case trade.SplitAdjustment:
			if !trade.IsFlat(inventory) {
				if adjusted := inventory.Add(r.Quantity); adjusted.Div(inventory).IsPositive() {
					inventory = adjusted
				}
			}
			if current == "" {
				current = episodeKey(r, used)
			}
		default:
			if current == "" {
				current = episodeKey(r, used)
			}
		}

		if r.PositionKey != current {
			updates = append(updates, Update{TradeID: r.ID, Key: current})
		}
	}
	return updates
}

// episodeKey picks the key of an episode opened by r and marks it used.
// Minted keys move forward a millisecond at a time past keys already taken,
// so two episodes opening at the same instant still get distinct keys.
func episodeKey(r trade.Record, used map[string]bool) string {
	key := r.PositionKey
	if !trade.ValidKey(key) || used[key] {
		at := r.Timestamp
		key = trade.NewKey(r.AccountID, r.Symbol, at)
		for used[key] {
			at = at.Add(time.Millisecond)
			key = trade.NewKey(r.AccountID, r.Symbol, at)
		}
	}
	used[key] = true
	return key
}

func signed(r trade.Record) decimal.Decimal {
	if r.Side == trade.Sell {
		return r.AbsQuantity().Neg()
	}
	return r.AbsQuantity()
}

// flipped reports whether inventory crossed zero without landing on flat.
func flipped(before, after decimal.Decimal) bool {
	return !trade.IsFlat(before) && !trade.IsFlat(after) && before.Sign() != after.Sign()
}

func replayRank(s trade.Side) int {
	switch s {
	case trade.Buy:
		return 0
	case trade.Sell:
		return 1
	case trade.SplitAdjustment:
		return 2
	default:
		return 3
	}
}

// sortForReplay orders by timestamp, buys before sells on ties, then by
// ingestion id.
func sortForReplay(records []trade.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if ra, rb := replayRank(a.Side), replayRank(b.Side); ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
}
