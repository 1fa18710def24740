package pipeline

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// Tally is the per-locale outcome of one phase run.
type Tally struct {
	Discovered int // items reported by the page model
	Stored     int // new rows inserted (duplicates excluded)
	Processed  int // items whose processed flag was set this run
	Failed     int // attempts that exhausted retries or failed validation
	Skipped    int // non-textual entries filtered out
}

// Summary aggregates tallies across the locales of one phase run. Safe for
// concurrent use by pool workers.
type Summary struct {
	mu      sync.Mutex
	Phase   string
	tallies map[scraper.Locale]*Tally
}

func newSummary(phase string) *Summary {
	return &Summary{Phase: phase, tallies: make(map[scraper.Locale]*Tally)}
}

func (s *Summary) add(locale scraper.Locale, f func(*Tally)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tallies[locale]
	if t == nil {
		t = &Tally{}
		s.tallies[locale] = t
	}
	f(t)
}

// Locale returns a copy of the tally for locale.
func (s *Summary) Locale(locale scraper.Locale) Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tallies[locale]; t != nil {
		return *t
	}
	return Tally{}
}

// Log writes the end-of-run summary, one line per locale.
func (s *Summary) Log(logger *zap.Logger, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for locale, t := range s.tallies {
		logger.Info("phase summary",
			zap.String("run_id", runID),
			zap.String("phase", s.Phase),
			zap.String("locale", string(locale)),
			zap.Int("discovered", t.Discovered),
			zap.Int("stored", t.Stored),
			zap.Int("processed", t.Processed),
			zap.Int("failed", t.Failed),
			zap.Int("skipped", t.Skipped),
		)
	}
}
