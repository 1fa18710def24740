// Package store persists pipeline state in an embedded SQLite database. It is
// the single authority for discovered collections, talk URLs, validated
// content and the audit log; phases never cache its rows across phase
// boundaries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// Store wraps the SQLite handle. All mutating operations are individually
// transactional, so a crash mid-phase leaves committed rows intact and
// in-flight rows simply absent.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single-writer store: one connection sidesteps table-lock contention
	// between pool workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close shuts down the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite database: %w", err)
	}
	return nil
}

// AddCollection upserts a discovered collection. Duplicate (locale, url)
// pairs are silently absorbed; the return value reports whether a new row
// was inserted.
func (s *Store) AddCollection(ctx context.Context, locale scraper.Locale, sourceURL string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (locale, source_url, discovered_at)
		VALUES (?, ?, ?)
		ON CONFLICT(locale, source_url) DO NOTHING
	`, locale, sourceURL, now)
	if err != nil {
		return false, fmt.Errorf("insert collection %s: %w", sourceURL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UnprocessedCollections returns the collections for locale whose leaf
// enumeration has not yet been attempted, in URL order.
func (s *Store) UnprocessedCollections(ctx context.Context, locale scraper.Locale) ([]scraper.CollectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT locale, source_url, discovered_at, processed
		FROM collections
		WHERE locale = ? AND processed = 0
		ORDER BY source_url
	`, locale)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed collections: %w", err)
	}
	defer rows.Close()

	var out []scraper.CollectionRecord
	for rows.Next() {
		var rec scraper.CollectionRecord
		if err := rows.Scan(&rec.Locale, &rec.SourceURL, &rec.DiscoveredAt, &rec.Processed); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkCollectionProcessed records that leaf enumeration was attempted for the
// collection. The flag means "enumeration attempted", not "every leaf
// extracted"; it is set even when zero leaves were found so an empty or
// inaccessible collection is not re-crawled forever.
func (s *Store) MarkCollectionProcessed(ctx context.Context, locale scraper.Locale, sourceURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collections SET processed = 1 WHERE locale = ? AND source_url = ?
	`, locale, sourceURL)
	if err != nil {
		return fmt.Errorf("mark collection processed %s: %w", sourceURL, err)
	}
	return nil
}

// AddLeaf upserts a discovered talk URL, reporting whether a new row was
// inserted. The (locale, item_url) constraint collapses the same talk reached
// through different collection pages.
func (s *Store) AddLeaf(ctx context.Context, leaf scraper.LeafRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leaves (collection_url, item_url, locale, discovered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(locale, item_url) DO NOTHING
	`, leaf.CollectionURL, leaf.ItemURL, leaf.Locale, leaf.DiscoveredAt)
	if err != nil {
		return false, fmt.Errorf("insert leaf %s: %w", leaf.ItemURL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UnprocessedLeaves returns up to limit pending talks for locale, newest URL
// first. A non-positive limit returns everything.
func (s *Store) UnprocessedLeaves(ctx context.Context, locale scraper.Locale, limit int) ([]scraper.LeafRecord, error) {
	q := `
		SELECT collection_url, item_url, locale, discovered_at, processed
		FROM leaves
		WHERE locale = ? AND processed = 0
		ORDER BY item_url DESC
	`
	args := []any{locale}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed leaves: %w", err)
	}
	defer rows.Close()

	var out []scraper.LeafRecord
	for rows.Next() {
		var rec scraper.LeafRecord
		if err := rows.Scan(&rec.CollectionURL, &rec.ItemURL, &rec.Locale, &rec.DiscoveredAt, &rec.Processed); err != nil {
			return nil, fmt.Errorf("scan leaf: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CommitContent upserts the validated ContentRecord and flips the leaf's
// processed flag in one transaction. This is the only way a leaf becomes
// processed, which keeps the store free of leaves that claim success without
// content.
func (s *Store) CommitContent(ctx context.Context, rec scraper.ContentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertContent(ctx, tx, rec); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE leaves SET processed = 1 WHERE locale = ? AND item_url = ?
	`, rec.Locale, rec.ItemURL); err != nil {
		return fmt.Errorf("mark leaf processed %s: %w", rec.ItemURL, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit content %s: %w", rec.ItemURL, err)
	}
	return nil
}

// UpsertContent writes a ContentRecord without touching leaf state. Used by
// metadata recovery, which rebuilds content rows from saved artifacts.
func (s *Store) UpsertContent(ctx context.Context, rec scraper.ContentRecord) error {
	return upsertContent(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertContent(ctx context.Context, db execer, rec scraper.ContentRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO contents (item_url, title, author, role, note_count, locale, period_year, period, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_url) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			role = excluded.role,
			note_count = excluded.note_count,
			locale = excluded.locale,
			period_year = excluded.period_year,
			period = excluded.period,
			captured_at = excluded.captured_at
	`, rec.ItemURL, rec.Title, rec.Author, nullIfEmpty(rec.Role), rec.NoteCount,
		rec.Locale, rec.PeriodYear, rec.Period, rec.CapturedAt)
	if err != nil {
		return fmt.Errorf("upsert content %s: %w", rec.ItemURL, err)
	}
	return nil
}

// GetContent fetches the ContentRecord for itemURL, reporting found=false on
// absence.
func (s *Store) GetContent(ctx context.Context, itemURL string) (scraper.ContentRecord, bool, error) {
	var rec scraper.ContentRecord
	var role sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT item_url, title, author, role, note_count, locale, period_year, period, captured_at
		FROM contents WHERE item_url = ?
	`, itemURL).Scan(&rec.ItemURL, &rec.Title, &rec.Author, &role, &rec.NoteCount,
		&rec.Locale, &rec.PeriodYear, &rec.Period, &rec.CapturedAt)
	if err == sql.ErrNoRows {
		return scraper.ContentRecord{}, false, nil
	}
	if err != nil {
		return scraper.ContentRecord{}, false, fmt.Errorf("query content %s: %w", itemURL, err)
	}
	rec.Role = role.String
	return rec, true, nil
}

// AppendLog writes one audit entry. The log is append-only; nothing in the
// codebase updates or deletes its rows.
func (s *Store) AppendLog(ctx context.Context, entry scraper.LogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO op_log (op, locale, url, status, message, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Operation, nullIfEmpty(string(entry.Locale)), nullIfEmpty(entry.URL),
		entry.Status, entry.Message, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// LogEntries returns log rows for an operation, oldest first. Mostly a test
// and stats aid; audits usually read the database directly.
func (s *Store) LogEntries(ctx context.Context, operation string) ([]scraper.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op, COALESCE(locale, ''), COALESCE(url, ''), status, COALESCE(message, ''), ts
		FROM op_log WHERE op = ? ORDER BY id
	`, operation)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var out []scraper.LogEntry
	for rows.Next() {
		var e scraper.LogEntry
		if err := rows.Scan(&e.Operation, &e.Locale, &e.URL, &e.Status, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
