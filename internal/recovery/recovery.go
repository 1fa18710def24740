// Package recovery rebuilds content rows from saved talk artifacts. It is
// the path back from a lost or corrupted database: every artifact that still
// passes validation becomes a content row again, without touching discovery
// state.
package recovery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/artifacts"
	"github.com/ldsarchive/talkscraper/internal/scraper"
	"github.com/ldsarchive/talkscraper/internal/store"
)

const progressEvery = 100

// Options narrow a recovery run. Zero values mean no filter; DryRun reports
// what would be restored without writing anything.
type Options struct {
	Locale scraper.Locale
	Period string // directory token, "YYYYMM"
	DryRun bool
}

// Report is the outcome of one recovery run.
type Report struct {
	Scanned  int
	Restored int
	Skipped  int
}

// Recoverer scans an artifact tree and upserts content rows from it.
type Recoverer struct {
	store  *store.Store
	reader *artifacts.Reader
	clock  scraper.Clock
	logger *zap.Logger
	runID  string
}

// New builds a Recoverer over the given store and artifact root.
func New(st *store.Store, reader *artifacts.Reader, clock scraper.Clock, logger *zap.Logger) *Recoverer {
	if clock == nil {
		clock = scraper.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recoverer{
		store:  st,
		reader: reader,
		clock:  clock,
		logger: logger,
		runID:  uuid.NewString(),
	}
}

// Run walks the artifact tree and restores every valid talk. Unreadable or
// invalid artifacts are logged and skipped; the run keeps going. Storage
// errors abort it.
func (r *Recoverer) Run(ctx context.Context, opts Options) (*Report, error) {
	paths, err := r.reader.Find(opts.Locale, opts.Period)
	if err != nil {
		return nil, err
	}
	r.logger.Info("recovery started",
		zap.String("run_id", r.runID),
		zap.Int("artifacts", len(paths)),
		zap.Bool("dry_run", opts.DryRun),
	)

	report := &Report{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		rec, skipReason := r.restoreOne(path)
		if skipReason != "" {
			report.Skipped++
			r.logger.Warn("artifact skipped",
				zap.String("run_id", r.runID),
				zap.String("path", path),
				zap.String("reason", skipReason),
			)
			if !opts.DryRun {
				r.appendLog(ctx, rec.Locale, path, scraper.StatusFailure, skipReason)
			}
		} else {
			if !opts.DryRun {
				if err := r.store.UpsertContent(ctx, rec); err != nil {
					return report, fmt.Errorf("restoring %s: %w", path, err)
				}
				r.appendLog(ctx, rec.Locale, rec.ItemURL, scraper.StatusSuccess,
					fmt.Sprintf("%s (%s)", rec.Title, rec.Author))
			}
			report.Restored++
		}

		if report.Scanned%progressEvery == 0 {
			r.logger.Info("recovery progress",
				zap.String("run_id", r.runID),
				zap.Int("scanned", report.Scanned),
				zap.Int("restored", report.Restored),
				zap.Int("skipped", report.Skipped),
			)
		}
	}

	r.logger.Info("recovery finished",
		zap.String("run_id", r.runID),
		zap.Int("scanned", report.Scanned),
		zap.Int("restored", report.Restored),
		zap.Int("skipped", report.Skipped),
		zap.Bool("dry_run", opts.DryRun),
	)
	return report, nil
}

// restoreOne parses and validates one artifact. A non-empty reason means the
// artifact cannot be restored.
func (r *Recoverer) restoreOne(path string) (scraper.ContentRecord, string) {
	art, err := r.reader.Parse(path)
	if err != nil {
		return scraper.ContentRecord{}, err.Error()
	}
	if art.URL == "" {
		return scraper.ContentRecord{Locale: art.Locale}, "missing source url"
	}

	fields := scraper.Clean(art.Fields)
	if err := scraper.Validate(fields); err != nil {
		return scraper.ContentRecord{Locale: art.Locale}, scraper.FailureCause(err)
	}

	capturedAt := art.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = r.clock.Now()
	}

	return scraper.ContentRecord{
		ItemURL:    art.URL,
		Title:      fields.Title,
		Author:     fields.Author,
		Role:       fields.Role,
		NoteCount:  len(fields.Notes),
		Locale:     art.Locale,
		PeriodYear: art.Period.Year,
		Period:     art.Period.String(),
		CapturedAt: capturedAt,
	}, ""
}

func (r *Recoverer) appendLog(ctx context.Context, locale scraper.Locale, url, status, message string) {
	entry := scraper.LogEntry{
		Operation: scraper.OpRecovery,
		Locale:    locale,
		URL:       url,
		Status:    status,
		Message:   message,
		Timestamp: r.clock.Now(),
	}
	if err := r.store.AppendLog(ctx, entry); err != nil {
		r.logger.Warn("appending operation log failed", zap.Error(err))
	}
}
