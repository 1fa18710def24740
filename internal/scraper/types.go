// Package scraper defines core types shared across subsystems.
package scraper

import (
	"fmt"
	"time"
)

// Locale identifies a supported language variant of the corpus.
type Locale string

// Supported locales. The source publishes the full archive in English and a
// slightly smaller one in Spanish.
const (
	LocaleEnglish Locale = "eng"
	LocaleSpanish Locale = "spa"
)

// Locales returns every supported locale in a stable order.
func Locales() []Locale {
	return []Locale{LocaleEnglish, LocaleSpanish}
}

// ParseLocale validates a locale string. An unknown locale is a configuration
// error and aborts the run before any work starts.
func ParseLocale(s string) (Locale, error) {
	switch Locale(s) {
	case LocaleEnglish, LocaleSpanish:
		return Locale(s), nil
	default:
		return "", fmt.Errorf("unsupported locale %q (supported: eng, spa)", s)
	}
}

// CollectionRecord identifies one top-level conference session discovered
// during phase 1. (Locale, SourceURL) is unique in the store.
type CollectionRecord struct {
	Locale       Locale
	SourceURL    string
	DiscoveredAt time.Time
	Processed    bool
}

// LeafRecord is one talk belonging to a collection. (Locale, ItemURL) is
// unique across the whole store since the same talk can be reachable through
// more than one collection listing.
type LeafRecord struct {
	CollectionURL string
	ItemURL       string
	Locale        Locale
	DiscoveredAt  time.Time
	Processed     bool
}

// ContentRecord holds validated structured content for one talk. A record
// exists only if the source fields passed Validate; ItemURL is unique and
// re-extraction replaces the row in place.
type ContentRecord struct {
	ItemURL    string
	Title      string
	Author     string
	Role       string
	NoteCount  int
	Locale     Locale
	PeriodYear int
	Period     string // canonical "YYYY-MM"
	CapturedAt time.Time
}

// LeafFields carries the raw candidate fields located on a talk page before
// validation. Notes come from the dynamic renderer and may be empty.
type LeafFields struct {
	Title  string
	Author string
	Role   string
	Body   string
	Notes  []string
}

// LeafLink is a candidate talk link found on a collection page. Non-textual
// entries (video-only sessions) carry Textual=false and are filtered out by
// phase 2.
type LeafLink struct {
	URL     string
	Textual bool
}

// Operation names recorded in the operation log.
const (
	OpCollect  = "collect"
	OpLeaves   = "leaf_discovery"
	OpContent  = "content_extraction"
	OpRecovery = "metadata_recovery"
)

// Log entry statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// LogEntry is one append-only audit record. One entry is written per attempt,
// so retried items accumulate multiple entries.
type LogEntry struct {
	Operation string    `json:"operation"`
	Locale    Locale    `json:"locale"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
