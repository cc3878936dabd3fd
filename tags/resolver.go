// Package tags maps reconstructed positions back to externally defined
// tags. Tag definitions and their links to position keys are owned
// elsewhere; this package only reads them.
package tags

import (
	"time"

	"github.com/rustyeddy/positions/trade"
)

// Resolver looks tags up by position key.
type Resolver struct {
	byKey map[string][]string
	defs  map[string]Tag
}

// NewResolver builds a resolver from key→tag id links and tag definitions.
// Links pointing at unknown tag ids are kept for TagIDs but dropped from
// Resolve.
func NewResolver(links []Link, defs []Tag) *Resolver {
	r := &Resolver{
		byKey: make(map[string][]string),
		defs:  make(map[string]Tag, len(defs)),
	}
	for _, d := range defs {
		r.defs[d.ID] = d
	}
	seen := make(map[Link]bool, len(links))
	for _, l := range links {
		if seen[l] {
			continue
		}
		seen[l] = true
		r.byKey[l.PositionKey] = append(r.byKey[l.PositionKey], l.TagID)
	}
	return r
}

// TagIDs returns the tag ids of a position. Lookup tries, in order, the
// stored key, the key re-derived from account, symbol and open time, and
// the legacy colon delimited key. The first key with any link wins.
func (r *Resolver) TagIDs(accountID, symbol, storedKey string, openedAt time.Time) []string {
	if r == nil {
		return nil
	}
	for _, k := range []string{
		storedKey,
		trade.NewKey(accountID, symbol, openedAt),
		trade.LegacyKey(accountID, symbol, openedAt),
	} {
		if k == "" {
			continue
		}
		if ids, ok := r.byKey[k]; ok && len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// Resolve returns the tag definitions of a position. A position without
// any resolvable key has no tags.
func (r *Resolver) Resolve(accountID, symbol, storedKey string, openedAt time.Time) []Tag {
	ids := r.TagIDs(accountID, symbol, storedKey, openedAt)
	if len(ids) == 0 {
		return nil
	}
	out := make([]Tag, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.defs[id]; ok {
			out = append(out, d)
		}
	}
	return out
}
