// Package report ties the reconstruction stages together: it reduces a
// trade log into closed trades and open positions, attaches tags and
// applies the caller's filters.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/positions/fifo"
	"github.com/rustyeddy/positions/filter"
	"github.com/rustyeddy/positions/tags"
	"github.com/rustyeddy/positions/trade"
	"github.com/shopspring/decimal"
)

// Result is what analytics and presentation layers consume.
type Result struct {
	ClosedTrades  []fifo.ClosedTrade
	OpenPositions []fifo.OpenPosition
	// UnrealizedCost is the capital tied up in the reported open
	// positions: Σ |quantity| × entry × multiplier.
	UnrealizedCost decimal.Decimal

	// Skipped and Suppressed count trades that did not affect inventory
	// and residual lots hidden as phantom shorts, before filtering.
	Skipped    int
	Suppressed int
}

// Build recomputes positions from records. It never fails: malformed
// trades only show up in Skipped.
func Build(records []trade.Record, opts filter.Options, r *tags.Resolver, now time.Time) Result {
	s := fifo.ReduceAll(records, now)

	closed := Attach(s.Closed, r)
	open := AttachOpen(s.Positions(), r)

	res := Result{
		ClosedTrades:   filter.Closed(closed, opts, r),
		OpenPositions:  filter.Open(open, opts, r),
		UnrealizedCost: decimal.Zero,
		Skipped:        s.Skipped,
		Suppressed:     len(s.Suppressed),
	}
	for _, p := range res.OpenPositions {
		res.UnrealizedCost = res.UnrealizedCost.Add(p.Notional.Abs())
	}
	return res
}

// Attach resolves the tags of each closed trade through its opening lot.
func Attach(in []fifo.ClosedTrade, r *tags.Resolver) []fifo.ClosedTrade {
	for i := range in {
		c := &in[i]
		c.Tags = r.Resolve(c.AccountID, c.Symbol, c.PositionKey, c.OpenedAt)
	}
	return in
}

// AttachOpen resolves the tags of each open position.
func AttachOpen(in []fifo.OpenPosition, r *tags.Resolver) []fifo.OpenPosition {
	for i := range in {
		p := &in[i]
		p.Tags = r.Resolve(p.AccountID, p.Symbol, p.PositionKey, p.OpenedAt)
	}
	return in
}

// Source supplies the trade log and the externally owned tag data.
type Source interface {
	// ListTrades returns every stored trade of accountID, or of all
	// accounts when accountID is empty.
	ListTrades(ctx context.Context, accountID string) ([]trade.Record, error)
	TagLinks(ctx context.Context) ([]tags.Link, error)
	Tags(ctx context.Context) ([]tags.Tag, error)
}

// Service builds reports from a Source.
type Service struct {
	src Source
	log *slog.Logger
	now func() time.Time
}

func NewService(src Source, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{src: src, log: log, now: time.Now}
}

// Report loads the trade log and tag data and builds a Result. Filtering
// happens after reduction, so every stream is replayed from its start
// whatever the date window.
func (s *Service) Report(ctx context.Context, opts filter.Options) (Result, error) {
	records, err := s.src.ListTrades(ctx, opts.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("load trades: %w", err)
	}
	links, err := s.src.TagLinks(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load tag links: %w", err)
	}
	defs, err := s.src.Tags(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load tags: %w", err)
	}

	res := Build(records, opts, tags.NewResolver(links, defs), s.now())
	if res.Skipped > 0 || res.Suppressed > 0 {
		s.log.Debug("trades without effect on positions", "skipped", res.Skipped, "phantom_shorts", res.Suppressed)
	}
	return res, nil
}
