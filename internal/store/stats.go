package store

import (
	"context"
	"fmt"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// PhaseCounts is the total/processed/pending breakdown for one entity type.
type PhaseCounts struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
}

// LocaleStats groups per-locale progress across the three entity types.
type LocaleStats struct {
	Collections PhaseCounts `json:"collections"`
	Leaves      PhaseCounts `json:"leaves"`
	Contents    int         `json:"contents"`
}

// Stats is the end-of-run and status-endpoint summary view.
type Stats struct {
	Locales map[scraper.Locale]LocaleStats `json:"locales"`
}

// Stats aggregates progress counts by locale.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	out := Stats{Locales: make(map[scraper.Locale]LocaleStats)}

	if err := s.countInto(ctx, "collections", &out, func(ls *LocaleStats, c PhaseCounts) {
		ls.Collections = c
	}); err != nil {
		return Stats{}, err
	}
	if err := s.countInto(ctx, "leaves", &out, func(ls *LocaleStats, c PhaseCounts) {
		ls.Leaves = c
	}); err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT locale, COUNT(*) FROM contents GROUP BY locale`)
	if err != nil {
		return Stats{}, fmt.Errorf("query content stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var locale scraper.Locale
		var n int
		if err := rows.Scan(&locale, &n); err != nil {
			return Stats{}, fmt.Errorf("scan content stats: %w", err)
		}
		ls := out.Locales[locale]
		ls.Contents = n
		out.Locales[locale] = ls
	}
	return out, rows.Err()
}

func (s *Store) countInto(ctx context.Context, table string, stats *Stats, assign func(*LocaleStats, PhaseCounts)) error {
	// table is one of two compile-time constants, never user input.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT locale,
		       COUNT(*),
		       SUM(CASE WHEN processed = 1 THEN 1 ELSE 0 END)
		FROM %s GROUP BY locale
	`, table))
	if err != nil {
		return fmt.Errorf("query %s stats: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var locale scraper.Locale
		var counts PhaseCounts
		if err := rows.Scan(&locale, &counts.Total, &counts.Processed); err != nil {
			return fmt.Errorf("scan %s stats: %w", table, err)
		}
		counts.Pending = counts.Total - counts.Processed
		ls := stats.Locales[locale]
		assign(&ls, counts)
		stats.Locales[locale] = ls
	}
	return rows.Err()
}
