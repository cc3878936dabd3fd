package trade

import (
	"sort"
)

// Group identifies one independent instrument stream.
type Group struct {
	AccountID  string
	Instrument string
}

// Key is the canonical stream key.
func (g Group) Key() string {
	return g.AccountID + "|" + g.Instrument
}

// GroupOf returns the stream a record belongs to. The universal instrument
// id wins when present; otherwise the raw symbol is used, which can merge
// unrelated instruments that reused a ticker.
func GroupOf(r Record) Group {
	instrument := r.InstrumentID
	if instrument == "" {
		instrument = r.Symbol
	}
	return Group{AccountID: r.AccountID, Instrument: instrument}
}

// CanonicalKey is GroupOf(r).Key().
func CanonicalKey(r Record) string {
	return GroupOf(r).Key()
}

// Route partitions records into per instrument streams, each ordered by
// timestamp with ingestion order breaking ties.
func Route(records []Record) map[string][]Record {
	out := make(map[string][]Record)
	for _, r := range records {
		k := CanonicalKey(r)
		out[k] = append(out[k], r)
	}
	for k := range out {
		SortStream(out[k])
	}
	return out
}

// Keys returns the stream keys of a routed batch in sorted order.
func Keys(streams map[string][]Record) []string {
	keys := make([]string, 0, len(streams))
	for k := range streams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortStream orders records by timestamp, then by ingestion id. Records
// that tie on both keep their input order.
func SortStream(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
}
