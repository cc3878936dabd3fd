package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/positions/trade"
)

// ErrRetryable marks a recalculation that was aborted by a concurrent
// writer. Nothing was written; running it again is safe.
var ErrRetryable = errors.New("identity: concurrent recalculation, retry")

// Tx is the view of the store inside one group transaction.
type Tx interface {
	// GroupTrades returns the full, unfiltered history of the group and
	// holds whatever lock the store needs until the transaction ends.
	GroupTrades(ctx context.Context, g trade.Group) ([]trade.Record, error)
	// SetPositionKeys applies every update or none of them.
	SetPositionKeys(ctx context.Context, updates []Update) error
}

// Store is the persistence the assigner needs.
type Store interface {
	Groups(ctx context.Context) ([]trade.Group, error)
	// InGroupTx runs fn inside a single transaction scoped to g. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InGroupTx(ctx context.Context, g trade.Group, fn func(Tx) error) error
	PruneOrphanTags(ctx context.Context) (int64, error)
}

// Assigner runs the position key maintenance pass.
type Assigner struct {
	store   Store
	log     *slog.Logger
	retries int
	backoff time.Duration
	locks   groupLocks
}

type Option func(*Assigner)

// WithLogger sets the logger used for progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assigner) { a.log = l }
}

// WithRetry sets how often a retryable failure is retried per group and
// the base delay between attempts.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(a *Assigner) {
		a.retries = retries
		a.backoff = backoff
	}
}

func New(store Store, opts ...Option) *Assigner {
	a := &Assigner{
		store:   store,
		log:     slog.Default(),
		retries: 3,
		backoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recalculate brings the position keys of group g up to date and returns
// how many trades were rewritten. Calls for the same group are serialized
// within the process; the store transaction serializes them across
// processes.
func (a *Assigner) Recalculate(ctx context.Context, g trade.Group) (int, error) {
	unlock := a.locks.lock(g.Key())
	defer unlock()

	for attempt := 0; ; attempt++ {
		n, err := a.recalculate(ctx, g)
		if err == nil || !errors.Is(err, ErrRetryable) || attempt >= a.retries {
			return n, err
		}

		a.log.Warn("position key recalculation conflict", "group", g.Key(), "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(a.backoff * time.Duration(attempt+1)):
		}
	}
}

func (a *Assigner) recalculate(ctx context.Context, g trade.Group) (int, error) {
	var n int
	err := a.store.InGroupTx(ctx, g, func(tx Tx) error {
		records, err := tx.GroupTrades(ctx, g)
		if err != nil {
			return fmt.Errorf("load group %s: %w", g.Key(), err)
		}

		updates := Assign(records)
		if len(updates) == 0 {
			return nil
		}
		if err := tx.SetPositionKeys(ctx, updates); err != nil {
			return fmt.Errorf("write keys for %s: %w", g.Key(), err)
		}
		n = len(updates)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if n > 0 {
		a.log.Info("position keys updated", "group", g.Key(), "updated", n)
	}
	return n, nil
}

// Summary reports the outcome of RecalculateAll.
type Summary struct {
	Groups  int
	Updated int
	Failed  int
}

// RecalculateAll recalculates every group in the store. A failing group
// does not stop the others; their errors are joined in the result.
func (a *Assigner) RecalculateAll(ctx context.Context) (Summary, error) {
	groups, err := a.store.Groups(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list groups: %w", err)
	}

	var (
		sum  Summary
		errs []error
	)
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		sum.Groups++
		n, err := a.Recalculate(ctx, g)
		if err != nil {
			sum.Failed++
			errs = append(errs, err)
			a.log.Error("position key recalculation failed", "group", g.Key(), "err", err)
			continue
		}
		sum.Updated += n
	}

	a.log.Info("position key recalculation done", "groups", sum.Groups, "updated", sum.Updated, "failed", sum.Failed)
	return sum, errors.Join(errs...)
}

// PruneOrphanTags deletes tag associations whose position key no longer
// has any trade. Run it after bulk trade deletion.
func (a *Assigner) PruneOrphanTags(ctx context.Context) (int64, error) {
	n, err := a.store.PruneOrphanTags(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune orphan tags: %w", err)
	}
	if n > 0 {
		a.log.Info("pruned orphan tag links", "count", n)
	}
	return n, nil
}

type groupLock struct {
	sync.Mutex
	refs int
}

// groupLocks hands out one mutex per group key and forgets it once no
// caller holds or waits for it.
type groupLocks struct {
	mu sync.Mutex
	m  map[string]*groupLock
}

func (l *groupLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*groupLock)
	}
	gl, ok := l.m[key]
	if !ok {
		gl = &groupLock{}
		l.m[key] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.Lock()
	return func() {
		gl.Unlock()
		l.mu.Lock()
		gl.refs--
		if gl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
