package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rustyeddy/positions/tags"
	"github.com/rustyeddy/positions/trade"
)

// Tags returns every tag definition.
func (s *Store) Tags(ctx context.Context) ([]tags.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tags.Tag
	for rows.Next() {
		var t tags.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TagLinks returns every position key to tag association.
func (s *Store) TagLinks(ctx context.Context) ([]tags.Link, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT position_key, tag_id FROM position_tags ORDER BY position_key, tag_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tags.Link
	for rows.Next() {
		var l tags.Link
		if err := rows.Scan(&l.PositionKey, &l.TagID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SaveTag creates or renames a tag definition. Tags are owned by the
// journaling front end; this exists for imports and tests.
func (s *Store) SaveTag(ctx context.Context, t tags.Tag) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO tags (id, name, color) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, color = excluded.color`),
		t.ID, t.Name, t.Color)
	return err
}

// LinkTag attaches a tag to a position key.
func (s *Store) LinkTag(ctx context.Context, l tags.Link) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO position_tags (position_key, tag_id) VALUES (?, ?)
		ON CONFLICT (position_key, tag_id) DO NOTHING`),
		l.PositionKey, l.TagID)
	return err
}

// PruneOrphanTags deletes tag links that no trade can resolve to any more.
// A link is kept while its key is the stored key of some trade, or the v2 or
// legacy key derived from a trade's account, symbol and execution time, the
// same keys the tag resolver tries.
func (s *Store) PruneOrphanTags(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, retryable(err)
	}
	defer tx.Rollback()

	live, err := liveKeys(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("load position keys: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT position_key FROM position_tags`)
	if err != nil {
		return 0, err
	}
	var orphans []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return 0, err
		}
		if !live[k] {
			orphans = append(orphans, k)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var pruned int64
	for _, k := range orphans {
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM position_tags WHERE position_key = ?`), k)
		if err != nil {
			return 0, retryable(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		pruned += n
	}

	if err := tx.Commit(); err != nil {
		return 0, retryable(err)
	}
	return pruned, nil
}

func liveKeys(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT account_id, symbol, executed_at, position_key FROM trades`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	live := make(map[string]bool)
	for rows.Next() {
		var (
			account, symbol string
			at              time.Time
			key             sql.NullString
		)
		if err := rows.Scan(&account, &symbol, &at, &key); err != nil {
			return nil, err
		}
		if key.Valid {
			live[key.String] = true
		}
		live[trade.NewKey(account, symbol, at)] = true
		live[trade.LegacyKey(account, symbol, at)] = true
	}
	return live, rows.Err()
}
