// Package fifo reduces an ordered stream of executions for one instrument
// into realized trades and residual open lots, matching oldest lots first.
//
// Reduction never fails. Executions that cannot be applied are skipped and
// counted on the returned Stream so callers can decide whether to surface
// them.
package fifo

import (
	"time"

	"github.com/rustyeddy/positions/trade"
	"github.com/shopspring/decimal"
)

// Stream is the result of reducing one instrument stream.
type Stream struct {
	Closed []ClosedTrade
	Open   []Lot

	// Suppressed holds residual short lots hidden as phantom shorts: the
	// stream never bought, so the history is assumed incomplete.
	Suppressed []Lot

	// Skipped counts executions that had no effect on inventory.
	Skipped int
}

// Positions returns the reported open lots as open positions.
func (s Stream) Positions() []OpenPosition {
	out := make([]OpenPosition, 0, len(s.Open))
	for _, l := range s.Open {
		out = append(out, l.Position())
	}
	return out
}

// book holds the two lot queues of one reduction. At most one of them is
// non-empty at any time: an execution always nets against the opposite
// queue before it opens a lot on its own side.
type book struct {
	longs  []*Lot
	shorts []*Lot
	out    Stream
	bought bool
}

// Reduce applies records, which must belong to one instrument stream and be
// in chronological order, and returns the closed trades and residual lots.
// Records that were never normalized are classified from their action.
// now decides whether an option contract has expired.
func Reduce(records []trade.Record, now time.Time) Stream {
	b := &book{}
	for _, r := range records {
		b.apply(r)
	}
	if len(records) > 0 {
		b.expire(records[0], now)
	}
	return b.finish()
}

// ReduceAll routes records into instrument streams and reduces each of them.
// Streams are concatenated in canonical key order.
func ReduceAll(records []trade.Record, now time.Time) Stream {
	streams := trade.Route(records)

	var out Stream
	for _, k := range trade.Keys(streams) {
		s := Reduce(streams[k], now)
		out.Closed = append(out.Closed, s.Closed...)
		out.Open = append(out.Open, s.Open...)
		out.Suppressed = append(out.Suppressed, s.Suppressed...)
		out.Skipped += s.Skipped
	}
	return out
}

func (b *book) apply(r trade.Record) {
	if r.Timestamp.IsZero() {
		b.out.Skipped++
		return
	}

	switch r.Classified() {
	case trade.Buy:
		b.bought = true
		b.match(r, &b.shorts, &b.longs, Long)
	case trade.Sell:
		b.match(r, &b.longs, &b.shorts, Short)
	case trade.SplitAdjustment:
		if !b.split(r.Quantity) {
			b.out.Skipped++
		}
	default:
		b.out.Skipped++
	}
}

// match consumes opposing lots oldest first and opens a lot on side dir
// for whatever quantity is left.
func (b *book) match(r trade.Record, opposing, same *[]*Lot, dir Direction) {
	qty := r.AbsQuantity()
	if trade.IsFlat(qty) {
		b.out.Skipped++
		return
	}
	fees := r.Fees.Abs()
	remaining := qty

	for !trade.IsFlat(remaining) && len(*opposing) > 0 {
		lot := (*opposing)[0]
		matched := decimal.Min(remaining, lot.Quantity)
		fee := fees.Mul(matched).Div(qty)

		b.out.Closed = append(b.out.Closed, closeLot(lot, matched, r.Price, r.Timestamp, fee, r.ID))

		lot.Quantity = lot.Quantity.Sub(matched)
		remaining = remaining.Sub(matched)
		if trade.IsFlat(lot.Quantity) {
			*opposing = (*opposing)[1:]
		}
	}

	if trade.IsFlat(remaining) {
		return
	}
	*same = append(*same, &Lot{
		TradeID:          r.ID,
		AccountID:        r.AccountID,
		Broker:           r.Broker,
		Symbol:           r.Symbol,
		AssetType:        r.AssetType,
		Direction:        dir,
		Quantity:         remaining,
		OriginalQuantity: remaining,
		Price:            r.Price,
		OpenedAt:         r.Timestamp,
		Multiplier:       r.ContractMultiplier(),
		PositionKey:      r.PositionKey,
	})
}

// split rescales every lot on the non-empty side by
// (current + adjustment) / current, keeping notional unchanged. It reports
// false when there was nothing to rescale or the ratio is not positive.
func (b *book) split(adjustment decimal.Decimal) bool {
	lots := b.longs
	if len(lots) == 0 {
		lots = b.shorts
	}
	if len(lots) == 0 {
		return false
	}

	current := decimal.Zero
	for _, l := range lots {
		current = current.Add(l.Quantity)
	}
	if lots[0].Direction == Short {
		current = current.Neg()
	}
	if trade.IsFlat(current) {
		return false
	}

	ratio := current.Add(adjustment).Div(current)
	if !ratio.IsPositive() {
		return false
	}
	for _, l := range lots {
		l.Quantity = l.Quantity.Mul(ratio)
		l.OriginalQuantity = l.OriginalQuantity.Mul(ratio)
		l.Price = l.Price.Div(ratio)
	}
	return true
}

// expire force closes whatever is left of an option stream at zero once
// the contract's expiration day has passed. Stocks never expire.
func (b *book) expire(first trade.Record, now time.Time) {
	if first.AssetType != trade.Option {
		return
	}
	c, err := trade.ParseOption(first.Symbol)
	if err != nil || !c.Expired(now) {
		return
	}

	for _, lots := range [][]*Lot{b.longs, b.shorts} {
		for _, l := range lots {
			ct := closeLot(l, l.Quantity, decimal.Zero, c.Expiration, decimal.Zero, "")
			ct.Expired = true
			b.out.Closed = append(b.out.Closed, ct)
		}
	}
	b.longs, b.shorts = nil, nil
}

func (b *book) finish() Stream {
	residual := b.longs
	if len(residual) == 0 {
		residual = b.shorts
	}

	lots := make([]Lot, 0, len(residual))
	for _, l := range residual {
		lots = append(lots, *l)
	}

	if len(b.longs) == 0 && len(b.shorts) > 0 && !b.bought {
		b.out.Suppressed = lots
	} else {
		b.out.Open = lots
	}
	return b.out
}

func closeLot(l *Lot, qty, exit decimal.Decimal, at time.Time, fee decimal.Decimal, closeID string) ClosedTrade {
	diff := exit.Sub(l.Price)
	if l.Direction == Short {
		diff = diff.Neg()
	}
	return ClosedTrade{
		AccountID:    l.AccountID,
		Broker:       l.Broker,
		Symbol:       l.Symbol,
		AssetType:    l.AssetType,
		Direction:    l.Direction,
		Quantity:     qty,
		EntryPrice:   l.Price,
		ExitPrice:    exit,
		OpenedAt:     l.OpenedAt,
		ClosedAt:     at,
		PnL:          diff.Mul(qty).Mul(l.Multiplier).Sub(fee),
		Fees:         fee,
		Multiplier:   l.Multiplier,
		PositionKey:  l.PositionKey,
		OpenTradeID:  l.TradeID,
		CloseTradeID: closeID,
	}
}
