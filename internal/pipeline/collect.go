package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/metrics"
	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// Collect runs the conference discovery phase over the configured index
// pages of each locale. A failed index page is logged and skipped; the run
// continues with the remaining sources. Storage errors abort the run.
func (p *Pipeline) Collect(ctx context.Context, locales []scraper.Locale) (*Summary, error) {
	sum := newSummary(scraper.OpCollect)

	for _, locale := range locales {
		sources := p.cfg.Sources[locale]
		if len(sources) == 0 {
			p.logger.Warn("no index sources configured",
				zap.String("run_id", p.runID),
				zap.String("locale", string(locale)),
			)
			continue
		}

		for _, source := range sources {
			if err := ctx.Err(); err != nil {
				return sum, err
			}

			var links []string
			err := p.attempt(ctx, scraper.OpCollect, func(tctx context.Context) error {
				var ferr error
				links, ferr = p.pages.CollectionLinks(tctx, locale, source)
				return ferr
			})
			if err != nil {
				sum.add(locale, func(t *Tally) { t.Failed++ })
				metrics.ObserveItem(scraper.OpCollect, scraper.StatusFailure)
				p.appendLog(ctx, scraper.OpCollect, locale, source,
					scraper.StatusFailure, scraper.FailureCause(err))
				p.logger.Warn("index page failed",
					zap.String("run_id", p.runID),
					zap.String("locale", string(locale)),
					zap.String("source", source),
					zap.Error(err),
				)
				continue
			}

			stored := 0
			for _, link := range links {
				inserted, serr := p.store.AddCollection(ctx, locale, link, p.clock.Now())
				if serr != nil {
					return sum, fmt.Errorf("storing collection %s: %w", link, serr)
				}
				if inserted {
					stored++
				}
			}
			sum.add(locale, func(t *Tally) {
				t.Discovered += len(links)
				t.Stored += stored
			})
			metrics.ObserveItem(scraper.OpCollect, scraper.StatusSuccess)
			p.appendLog(ctx, scraper.OpCollect, locale, source,
				scraper.StatusSuccess, fmt.Sprintf("found %d conferences, %d new", len(links), stored))
		}
	}

	sum.Log(p.logger, p.runID)
	return sum, nil
}
