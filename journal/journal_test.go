package journal

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/positions/identity"
	"github.com/rustyeddy/positions/tags"
	"github.com/rustyeddy/positions/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 4, 10, 13, 30, 0, 0, time.UTC)

func newTestSQLite(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func rec(ext, symbol, action, qty, price string, at time.Time) trade.Record {
	return trade.Record{
		ExternalID: ext,
		AccountID:  "ACC1",
		Broker:     "ibkr",
		Symbol:     symbol,
		AssetType:  trade.Stock,
		Action:     action,
		Quantity:   decimal.RequireFromString(qty),
		Price:      decimal.RequireFromString(price),
		Fees:       decimal.RequireFromString("1.25"),
		Timestamp:  at,
	}
}

func sample() []trade.Record {
	return []trade.Record{
		rec("X1", "AAPL", "BUY", "10", "10", t0),
		rec("X2", "AAPL", "SELL", "-10", "12", t0.Add(time.Hour)),
		rec("X3", "AAPL", "BUY", "5", "9", t0.Add(2*time.Hour)),
		rec("X4", "MSFT", "BUY", "2", "400.5", t0),
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	s, path := newTestSQLite(t)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["tags"])
	assert.True(t, found["position_tags"])
}

func TestInsertTradesDeduplicates(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.InsertTrades(ctx, sample())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.InsertTrades(ctx, sample())
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := s.ListTrades(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestInsertAndGetTrade(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)
	ctx := context.Background()

	in := rec("X9", "AAPL  240119C00150000", "BUY_TO_OPEN", "2", "3.05", t0)
	in.AssetType = trade.Option
	in.InstrumentID = "OCC:AAPL240119C150"
	_, err := s.InsertTrades(ctx, []trade.Record{in})
	require.NoError(t, err)

	all, err := s.ListTrades(ctx, "ACC1")
	require.NoError(t, err)
	require.Len(t, all, 1)

	got, err := s.GetTrade(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "X9", got.ExternalID)
	assert.Equal(t, "ibkr", got.Broker)
	assert.Equal(t, trade.Option, got.AssetType)
	assert.Equal(t, trade.Buy, got.Side)
	assert.Equal(t, "OCC:AAPL240119C150", got.InstrumentID)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, got.Price.Equal(decimal.RequireFromString("3.05")))
	assert.True(t, got.Fees.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, got.Multiplier.Equal(trade.OptionMultiplier))
	assert.True(t, got.Timestamp.Equal(t0))
	assert.Empty(t, got.PositionKey)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)

	_, err := s.GetTrade(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTradesByAccountAndWindow(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)
	ctx := context.Background()

	other := rec("Y1", "AAPL", "BUY", "1", "1", t0)
	other.AccountID = "ACC2"
	_, err := s.InsertTrades(ctx, append(sample(), other))
	require.NoError(t, err)

	acc1, err := s.ListTrades(ctx, "ACC1")
	require.NoError(t, err)
	assert.Len(t, acc1, 4)

	win, err := s.ListTradesBetween(ctx, t0.Add(30*time.Minute), t0.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, win, 1)
	assert.Equal(t, "X2", win[0].ExternalID)
}

func TestGroups(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)
	ctx := context.Background()

	withID := rec("X5", "AAPL", "BUY", "1", "1", t0)
	withID.InstrumentID = "US0378331005"
	_, err := s.InsertTrades(ctx, append(sample(), withID))
	require.NoError(t, err)

	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []trade.Group{
		{AccountID: "ACC1", Instrument: "AAPL"},
		{AccountID: "ACC1", Instrument: "MSFT"},
		{AccountID: "ACC1", Instrument: "US0378331005"},
	}, groups)
}

func TestAssignerAgainstSQLite(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)
	ctx := context.Background()
	_, err := s.InsertTrades(ctx, sample())
	require.NoError(t, err)

	a := identity.New(s, identity.WithLogger(quiet()))
	sum, err := a.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, identity.Summary{Groups: 2, Updated: 4}, sum)

	sum, err = a.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Updated)

	aapl, err := s.ListTrades(ctx, "ACC1")
	require.NoError(t, err)
	keys := map[string]string{}
	for _, r := range aapl {
		keys[r.ExternalID] = r.PositionKey
	}
	assert.Equal(t, trade.NewKey("ACC1", "AAPL", t0), keys["X1"])
	assert.Equal(t, keys["X1"], keys["X2"])
	assert.NotEqual(t, keys["X1"], keys["X3"])
	assert.Equal(t, trade.NewKey("ACC1", "MSFT", t0), keys["X4"])
}

func TestConcurrentRecalculationConverges(t *testing.T) {
	t.Parallel()

	s1, path := newTestSQLite(t)
	ctx := context.Background()
	_, err := s1.InsertTrades(ctx, sample())
	require.NoError(t, err)

	// A second handle on the same file stands in for another process.
	s2, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	g := trade.Group{AccountID: "ACC1", Instrument: "AAPL"}
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for _, st := range []*Store{s1, s2, s1, s2} {
		wg.Add(1)
		go func(st *Store) {
			defer wg.Done()
			n, err := identity.New(st, identity.WithLogger(quiet()), identity.WithRetry(10, 10*time.Millisecond)).Recalculate(ctx, g)
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}(st)
	}
	wg.Wait()

	assert.Equal(t, 3, total)
}

func TestPruneOrphanTagsAfterDelete(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)
	ctx := context.Background()
	_, err := s.InsertTrades(ctx, sample())
	require.NoError(t, err)

	a := identity.New(s, identity.WithLogger(quiet()))
	_, err = a.RecalculateAll(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SaveTag(ctx, tags.Tag{ID: "t1", Name: "breakout", Color: "#0f0"}))
	require.NoError(t, s.SaveTag(ctx, tags.Tag{ID: "t2", Name: "earnings"}))
	msftKey := trade.NewKey("ACC1", "MSFT", t0)
	aaplKey := trade.NewKey("ACC1", "AAPL", t0)
	require.NoError(t, s.LinkTag(ctx, tags.Link{PositionKey: msftKey, TagID: "t1"}))
	require.NoError(t, s.LinkTag(ctx, tags.Link{PositionKey: aaplKey, TagID: "t2"}))
	require.NoError(t, s.LinkTag(ctx, tags.Link{PositionKey: aaplKey, TagID: "t2"}))

	links, err := s.TagLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	n, err := a.PruneOrphanTags(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := s.ListTrades(ctx, "ACC1")
	require.NoError(t, err)
	for _, r := range all {
		if r.Symbol == "MSFT" {
			deleted, err := s.DeleteTrades(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)
		}
	}

	n, err = a.PruneOrphanTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	links, err = s.TagLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []tags.Link{{PositionKey: aaplKey, TagID: "t2"}}, links)

	defs, err := s.Tags(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 2)
}

func TestPruneOrphanTagsKeepsDerivedAndLegacyLinks(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)
	ctx := context.Background()
	_, err := s.InsertTrades(ctx, sample())
	require.NoError(t, err)

	a := identity.New(s, identity.WithLogger(quiet()))
	_, err = a.RecalculateAll(ctx)
	require.NoError(t, err)

	legacy := trade.LegacyKey("ACC1", "MSFT", t0)
	// X3 reopened AAPL two hours in.
	reopened := trade.LegacyKey("ACC1", "AAPL", t0.Add(2*time.Hour))
	require.NoError(t, s.SaveTag(ctx, tags.Tag{ID: "old", Name: "imported"}))
	require.NoError(t, s.LinkTag(ctx, tags.Link{PositionKey: legacy, TagID: "old"}))
	require.NoError(t, s.LinkTag(ctx, tags.Link{PositionKey: reopened, TagID: "old"}))
	require.NoError(t, s.LinkTag(ctx, tags.Link{PositionKey: "ACC1:AAPL:1", TagID: "old"}))

	n, err := a.PruneOrphanTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	links, err := s.TagLinks(ctx)
	require.NoError(t, err)
	defs, err := s.Tags(ctx)
	require.NoError(t, err)
	r := tags.NewResolver(links, defs)
	assert.Equal(t, []string{"old"}, r.TagIDs("ACC1", "MSFT", trade.NewKey("ACC1", "MSFT", t0), t0))

	all, err := s.ListTrades(ctx, "ACC1")
	require.NoError(t, err)
	for _, rec := range all {
		if rec.Symbol == "MSFT" {
			_, err := s.DeleteTrades(ctx, rec.ID)
			require.NoError(t, err)
		}
	}

	n, err = a.PruneOrphanTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	links, err = s.TagLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []tags.Link{{PositionKey: reopened, TagID: "old"}}, links)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	pg := &Store{driver: Postgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", pg.rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)"))

	lite := &Store{driver: SQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestRetryableMapping(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.Is(retryable(sqlite3.Error{Code: sqlite3.ErrBusy}), identity.ErrRetryable))
	assert.True(t, errors.Is(retryable(sqlite3.Error{Code: sqlite3.ErrLocked}), identity.ErrRetryable))
	assert.True(t, errors.Is(retryable(&pq.Error{Code: "40001"}), identity.ErrRetryable))
	assert.False(t, errors.Is(retryable(&pq.Error{Code: "23505"}), identity.ErrRetryable))
	assert.False(t, errors.Is(retryable(sql.ErrNoRows), identity.ErrRetryable))
	assert.NoError(t, retryable(nil))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "mysql", "x")
	assert.Error(t, err)
}
