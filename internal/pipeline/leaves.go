package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/metrics"
	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// DiscoverLeaves runs the talk discovery phase over every unprocessed
// conference of each locale. A conference is marked processed once its
// listing was fetched and parsed, even when it yielded no textual talks. A
// conference whose fetch failed stays unprocessed so a later run retries it.
func (p *Pipeline) DiscoverLeaves(ctx context.Context, locales []scraper.Locale) (*Summary, error) {
	sum := newSummary(scraper.OpLeaves)

	for _, locale := range locales {
		cols, err := p.store.UnprocessedCollections(ctx, locale)
		if err != nil {
			return sum, fmt.Errorf("loading unprocessed conferences: %w", err)
		}
		p.logger.Info("discovering talks",
			zap.String("run_id", p.runID),
			zap.String("locale", string(locale)),
			zap.Int("conferences", len(cols)),
		)

		err = runPool(ctx, p.cfg, cols, func(wctx context.Context, col scraper.CollectionRecord) error {
			return p.discoverOne(wctx, col, sum)
		})
		if err != nil {
			return sum, err
		}
	}

	sum.Log(p.logger, p.runID)
	return sum, nil
}

func (p *Pipeline) discoverOne(ctx context.Context, col scraper.CollectionRecord, sum *Summary) error {
	var links []scraper.LeafLink
	err := p.attempt(ctx, scraper.OpLeaves, func(tctx context.Context) error {
		var ferr error
		links, ferr = p.pages.LeafLinks(tctx, col.SourceURL, col.Locale)
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sum.add(col.Locale, func(t *Tally) { t.Failed++ })
		metrics.ObserveItem(scraper.OpLeaves, scraper.StatusFailure)
		p.appendLog(ctx, scraper.OpLeaves, col.Locale, col.SourceURL,
			scraper.StatusFailure, scraper.FailureCause(err))
		p.logger.Warn("conference listing failed",
			zap.String("run_id", p.runID),
			zap.String("conference", col.SourceURL),
			zap.Error(err),
		)
		return nil
	}

	stored, skipped := 0, 0
	for _, link := range links {
		if !link.Textual {
			skipped++
			continue
		}
		leaf := scraper.LeafRecord{
			CollectionURL: col.SourceURL,
			ItemURL:       link.URL,
			Locale:        col.Locale,
			DiscoveredAt:  p.clock.Now(),
		}
		inserted, serr := p.store.AddLeaf(ctx, leaf)
		if serr != nil {
			return fmt.Errorf("storing talk %s: %w", link.URL, serr)
		}
		if inserted {
			stored++
		}
	}

	if serr := p.store.MarkCollectionProcessed(ctx, col.Locale, col.SourceURL); serr != nil {
		return fmt.Errorf("marking conference processed: %w", serr)
	}

	sum.add(col.Locale, func(t *Tally) {
		t.Discovered += len(links)
		t.Stored += stored
		t.Skipped += skipped
		t.Processed++
	})
	metrics.ObserveItem(scraper.OpLeaves, scraper.StatusSuccess)

	message := fmt.Sprintf("found %d talks, %d new", len(links), stored)
	if len(links) == 0 {
		message = "no talks found"
		p.logger.Warn("conference listing yielded no talks",
			zap.String("run_id", p.runID),
			zap.String("conference", col.SourceURL),
		)
	}
	p.appendLog(ctx, scraper.OpLeaves, col.Locale, col.SourceURL, scraper.StatusSuccess, message)
	return nil
}
