package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
)

// Dedup returns a dedup.Store backed by the same database, so notification
// markers survive restarts alongside the goals they refer to.
func (s *SQLite) Dedup() dedup.Store {
	return &sqliteDedup{s: s}
}

type sqliteDedup struct {
	s *SQLite
}

func (d *sqliteDedup) Check(ctx context.Context, key dedup.Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	var n int
	err := d.s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dedup_markers WHERE key = ?`, key.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check dedup marker: %w", err)
	}
	return n > 0, nil
}

// Mark relies on the primary key so that only one concurrent writer inserts.
func (d *sqliteDedup) Mark(ctx context.Context, key dedup.Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	res, err := d.s.db.ExecContext(ctx,
		`INSERT INTO dedup_markers (key, subject, scope, condition, marked_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key.String(), key.Subject, key.Scope, key.Condition, time.Now().UTC().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("mark dedup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark dedup: %w", err)
	}
	return n == 1, nil
}

func (d *sqliteDedup) ClearPrefix(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, fmt.Errorf("empty dedup prefix")
	}
	res, err := d.s.db.ExecContext(ctx,
		`DELETE FROM dedup_markers WHERE substr(key, 1, length(?1)) = ?1`, prefix)
	if err != nil {
		return 0, fmt.Errorf("clear dedup prefix: %w", err)
	}
	return res.RowsAffected()
}

func (d *sqliteDedup) Prune(ctx context.Context, subject, keepScope string) (int64, error) {
	res, err := d.s.db.ExecContext(ctx,
		`DELETE FROM dedup_markers WHERE subject = ? AND scope <> ?`, subject, keepScope)
	if err != nil {
		return 0, fmt.Errorf("prune dedup markers: %w", err)
	}
	return res.RowsAffected()
}
