package scraper

import (
	"context"
	"time"
)

// PageModel locates raw candidate fields on the source website. It is the
// only component that understands page layout; everything above it works in
// terms of URLs and LeafFields. All errors are *FetchError and recoverable by
// retrying at the caller.
type PageModel interface {
	// CollectionLinks returns the collection URLs linked from one index page.
	CollectionLinks(ctx context.Context, locale Locale, indexURL string) ([]string, error)

	// LeafLinks returns the talk links on a collection page, flagging
	// non-textual (video-only) entries.
	LeafLinks(ctx context.Context, collectionURL string, locale Locale) ([]LeafLink, error)

	// LeafFields returns the raw title/author/role/body/notes candidates for
	// one talk page.
	LeafFields(ctx context.Context, itemURL string, locale Locale) (LeafFields, error)
}

// NotesRenderer resolves the dynamically rendered footnotes of a talk page.
// Implementations drive a headless browser; a disabled renderer returns an
// empty slice.
type NotesRenderer interface {
	RenderNotes(ctx context.Context, itemURL string) ([]string, error)
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}

// SystemClock is the real Clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
