package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/metrics"
	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// ExtractContent runs the content extraction phase over unprocessed talks of
// each locale, at most limit per locale (limit <= 0 means all). A talk is
// marked processed only together with a validated content row, in one
// transaction; any failure leaves it unprocessed for the next run.
func (p *Pipeline) ExtractContent(ctx context.Context, locales []scraper.Locale, limit int) (*Summary, error) {
	sum := newSummary(scraper.OpContent)

	for _, locale := range locales {
		leaves, err := p.store.UnprocessedLeaves(ctx, locale, limit)
		if err != nil {
			return sum, fmt.Errorf("loading unprocessed talks: %w", err)
		}
		p.logger.Info("extracting talk content",
			zap.String("run_id", p.runID),
			zap.String("locale", string(locale)),
			zap.Int("talks", len(leaves)),
		)

		err = runPool(ctx, p.cfg, leaves, func(wctx context.Context, leaf scraper.LeafRecord) error {
			return p.extractOne(wctx, leaf, sum)
		})
		if err != nil {
			return sum, err
		}
	}

	sum.Log(p.logger, p.runID)
	return sum, nil
}

func (p *Pipeline) extractOne(ctx context.Context, leaf scraper.LeafRecord, sum *Summary) error {
	fail := func(cause string) {
		sum.add(leaf.Locale, func(t *Tally) { t.Failed++ })
		metrics.ObserveItem(scraper.OpContent, scraper.StatusFailure)
		p.appendLog(ctx, scraper.OpContent, leaf.Locale, leaf.ItemURL, scraper.StatusFailure, cause)
	}

	var fields scraper.LeafFields
	err := p.attempt(ctx, scraper.OpContent, func(tctx context.Context) error {
		var ferr error
		fields, ferr = p.pages.LeafFields(tctx, leaf.ItemURL, leaf.Locale)
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fail(scraper.FailureCause(err))
		p.logger.Warn("talk page failed",
			zap.String("run_id", p.runID),
			zap.String("talk", leaf.ItemURL),
			zap.Error(err),
		)
		return nil
	}

	fields = scraper.Clean(fields)
	if verr := scraper.Validate(fields); verr != nil {
		metrics.ObserveValidationFailure(string(leaf.Locale))
		fail(scraper.FailureCause(verr))
		p.logger.Warn("talk rejected by validation",
			zap.String("run_id", p.runID),
			zap.String("talk", leaf.ItemURL),
			zap.Error(verr),
		)
		return nil
	}

	period, perr := scraper.PeriodFromURL(leaf.ItemURL)
	if perr != nil {
		fail(scraper.FailureCause(perr))
		return nil
	}

	rec := scraper.ContentRecord{
		ItemURL:    leaf.ItemURL,
		Title:      fields.Title,
		Author:     fields.Author,
		Role:       fields.Role,
		NoteCount:  len(fields.Notes),
		Locale:     leaf.Locale,
		PeriodYear: period.Year,
		Period:     period.String(),
		CapturedAt: p.clock.Now(),
	}

	if p.artifacts != nil {
		path, aerr := p.artifacts.Save(rec, fields)
		if aerr != nil {
			fail("artifact: " + aerr.Error())
			p.logger.Warn("writing artifact failed",
				zap.String("run_id", p.runID),
				zap.String("talk", leaf.ItemURL),
				zap.Error(aerr),
			)
			return nil
		}
		p.logger.Debug("artifact written",
			zap.String("talk", leaf.ItemURL),
			zap.String("path", path),
		)
	}

	if serr := p.store.CommitContent(ctx, rec); serr != nil {
		return fmt.Errorf("committing talk %s: %w", leaf.ItemURL, serr)
	}

	sum.add(leaf.Locale, func(t *Tally) { t.Processed++ })
	metrics.ObserveItem(scraper.OpContent, scraper.StatusSuccess)
	p.appendLog(ctx, scraper.OpContent, leaf.Locale, leaf.ItemURL,
		scraper.StatusSuccess, fmt.Sprintf("%s (%s)", rec.Title, rec.Author))
	return nil
}
