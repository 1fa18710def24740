// Package pipeline orchestrates the three scrape phases: conference
// discovery, talk discovery, and content extraction. Each phase reads its
// work list from the store, so an interrupted run resumes where it left off.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/scraper"
	"github.com/ldsarchive/talkscraper/internal/store"
)

// ArtifactWriter persists an extracted talk to local storage and returns the
// path it was written to.
type ArtifactWriter interface {
	Save(rec scraper.ContentRecord, fields scraper.LeafFields) (string, error)
}

// Pipeline wires the page model, the store, and the artifact writer into the
// phase runners.
type Pipeline struct {
	store     *store.Store
	pages     scraper.PageModel
	artifacts ArtifactWriter // nil disables artifact files
	clock     scraper.Clock
	logger    *zap.Logger
	cfg       Config
	runID     string
}

// New builds a Pipeline. A nil clock falls back to the system clock, a nil
// artifacts writer disables artifact files.
func New(st *store.Store, pages scraper.PageModel, artifacts ArtifactWriter, clock scraper.Clock, logger *zap.Logger, cfg Config) *Pipeline {
	if clock == nil {
		clock = scraper.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     st,
		pages:     pages,
		artifacts: artifacts,
		clock:     clock,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		runID:     uuid.NewString(),
	}
}

// RunID identifies this pipeline instance in logs and the operation log.
func (p *Pipeline) RunID() string {
	return p.runID
}

func (p *Pipeline) appendLog(ctx context.Context, operation string, locale scraper.Locale, url, status, message string) {
	entry := scraper.LogEntry{
		Operation: operation,
		Locale:    locale,
		URL:       url,
		Status:    status,
		Message:   message,
		Timestamp: p.clock.Now(),
	}
	if err := p.store.AppendLog(ctx, entry); err != nil {
		p.logger.Warn("appending operation log failed",
			zap.String("run_id", p.runID),
			zap.Error(err),
		)
	}
}
