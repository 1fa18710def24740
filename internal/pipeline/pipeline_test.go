package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/artifacts"
	"github.com/ldsarchive/talkscraper/internal/scraper"
	"github.com/ldsarchive/talkscraper/internal/store"
)

// fakePages serves canned page data and can be told to fail specific URLs,
// optionally only for the first N calls so retry behavior is observable.
type fakePages struct {
	mu          sync.Mutex
	collections map[string][]string
	leaves      map[string][]scraper.LeafLink
	fields      map[string]scraper.LeafFields
	failures    map[string]error
	failTimes   map[string]int
	calls       map[string]int
}

func newFakePages() *fakePages {
	return &fakePages{
		collections: make(map[string][]string),
		leaves:      make(map[string][]scraper.LeafLink),
		fields:      make(map[string]scraper.LeafFields),
		failures:    make(map[string]error),
		failTimes:   make(map[string]int),
		calls:       make(map[string]int),
	}
}

func (f *fakePages) failFor(url string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[url] = err
	f.failTimes[url] = times
}

func (f *fakePages) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakePages) check(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	err, ok := f.failures[url]
	if !ok {
		return nil
	}
	if n := f.failTimes[url]; n > 0 && f.calls[url] > n {
		return nil
	}
	return err
}

func (f *fakePages) CollectionLinks(_ context.Context, _ scraper.Locale, indexURL string) ([]string, error) {
	if err := f.check(indexURL); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections[indexURL], nil
}

func (f *fakePages) LeafLinks(_ context.Context, collectionURL string, _ scraper.Locale) ([]scraper.LeafLink, error) {
	if err := f.check(collectionURL); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves[collectionURL], nil
}

func (f *fakePages) LeafFields(_ context.Context, itemURL string, _ scraper.Locale) (scraper.LeafFields, error) {
	if err := f.check(itemURL); err != nil {
		return scraper.LeafFields{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[itemURL], nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })
	return st
}

func testPipeline(t *testing.T, st *store.Store, pages scraper.PageModel, cfg Config) *Pipeline {
	t.Helper()
	cfg.RetryBaseDelay = time.Millisecond
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = 5 * time.Second
	}
	clock := fixedClock{at: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(st, pages, nil, clock, zap.NewNop(), cfg)
}

const (
	confA = "https://www.churchofjesuschrist.org/study/general-conference/2024/04?lang=eng"
	confB = "https://www.churchofjesuschrist.org/study/general-conference/2023/10?lang=eng"
	talkA = "https://www.churchofjesuschrist.org/study/general-conference/2024/04/11nelson?lang=eng"
	talkB = "https://www.churchofjesuschrist.org/study/general-conference/2024/04/25oaks?lang=eng"
)

func goodFields() scraper.LeafFields {
	return scraper.LeafFields{
		Title:  "Think Celestial!",
		Author: "Russell M. Nelson",
		Role:   "President of the Church",
		Body:   strings.Repeat("The joy we feel has little to do with our circumstances. ", 5),
		Notes:  []string{"See Doctrine and Covenants 14:7.", "Moses 1:39."},
	}
}

func TestCollectStoresNewConferencesOnce(t *testing.T) {
	st := testStore(t)
	pages := newFakePages()
	pages.collections["https://example.org/index"] = []string{confA, confB}

	cfg := Config{Sources: map[scraper.Locale][]string{
		scraper.LocaleEnglish: {"https://example.org/index"},
	}}
	p := testPipeline(t, st, pages, cfg)

	sum, err := p.Collect(context.Background(), []scraper.Locale{scraper.LocaleEnglish})
	require.NoError(t, err)
	require.Equal(t, 2, sum.Locale(scraper.LocaleEnglish).Discovered)
	require.Equal(t, 2, sum.Locale(scraper.LocaleEnglish).Stored)

	// Second run discovers the same links but stores nothing new.
	sum, err = p.Collect(context.Background(), []scraper.Locale{scraper.LocaleEnglish})
	require.NoError(t, err)
	require.Equal(t, 0, sum.Locale(scraper.LocaleEnglish).Stored)

	cols, err := st.UnprocessedCollections(context.Background(), scraper.LocaleEnglish)
	require.NoError(t, err)
	require.Len(t, cols, 2)
}

func TestCollectSkipsFailedIndexPage(t *testing.T) {
	st := testStore(t)
	pages := newFakePages()
	pages.collections["https://example.org/good"] = []string{confA}
	pages.failFor("https://example.org/bad",
		scraper.NewFetchError(scraper.KindNetwork, "https://example.org/bad", errors.New("connection refused")), 0)

	cfg := Config{
		RetryAttempts: 2,
		Sources: map[scraper.Locale][]string{
			scraper.LocaleEnglish: {"https://example.org/bad", "https://example.org/good"},
		},
	}
	p := testPipeline(t, st, pages, cfg)

	sum, err := p.Collect(context.Background(), []scraper.Locale{scraper.LocaleEnglish})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Failed)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Stored)

	entries, err := st.LogEntries(context.Background(), scraper.OpCollect)
	require.NoError(t, err)
	var failures int
	for _, e := range entries {
		if e.Status == scraper.StatusFailure {
			failures++
			require.Contains(t, e.Message, "network")
		}
	}
	require.Equal(t, 1, failures)
}

func TestDiscoverLeavesMarksEmptyConferenceProcessed(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	_, err := st.AddCollection(ctx, scraper.LocaleEnglish, confA, time.Now())
	require.NoError(t, err)

	pages := newFakePages()
	pages.leaves[confA] = nil

	p := testPipeline(t, st, pages, Config{Concurrency: 1})
	sum, err := p.DiscoverLeaves(ctx, []scraper.Locale{scraper.LocaleEnglish})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Processed)

	cols, err := st.UnprocessedCollections(ctx, scraper.LocaleEnglish)
	require.NoError(t, err)
	require.Empty(t, cols)

	entries, err := st.LogEntries(ctx, scraper.OpLeaves)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, scraper.StatusSuccess, entries[0].Status)
	require.Equal(t, "no talks found", entries[0].Message)
}

func TestDiscoverLeavesKeepsFailedConferenceUnprocessed(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	_, err := st.AddCollection(ctx, scraper.LocaleEnglish, confA, time.Now())
	require.NoError(t, err)
	_, err = st.AddCollection(ctx, scraper.LocaleEnglish, confB, time.Now())
	require.NoError(t, err)

	pages := newFakePages()
	pages.leaves[confA] = []scraper.LeafLink{
		{URL: talkA, Textual: true},
		{URL: talkB, Textual: true},
		{URL: talkB, Textual: false}, // video-only duplicate is skipped, not stored
	}
	pages.failFor(confB,
		scraper.NewFetchError(scraper.KindNetwork, confB, errors.New("timeout")), 0)

	p := testPipeline(t, st, pages, Config{Concurrency: 2, RetryAttempts: 2})
	sum, err := p.DiscoverLeaves(ctx, []scraper.Locale{scraper.LocaleEnglish})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Processed)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Failed)
	require.Equal(t, 2, sum.Locale(scraper.LocaleEnglish).Stored)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Skipped)

	cols, err := st.UnprocessedCollections(ctx, scraper.LocaleEnglish)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	require.Equal(t, confB, cols[0].SourceURL)

	leaves, err := st.UnprocessedLeaves(ctx, scraper.LocaleEnglish, 0)
	require.NoError(t, err)
	require.Len(t, leaves, 2)
}

func TestExtractContentCommitsAndMarksProcessed(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	seedLeaf(t, st, talkA)

	pages := newFakePages()
	pages.fields[talkA] = goodFields()

	p := testPipeline(t, st, pages, Config{Concurrency: 1})
	sum, err := p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Processed)

	rec, ok, err := st.GetContent(ctx, talkA)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Think Celestial!", rec.Title)
	require.Equal(t, "2024-04", rec.Period)
	require.Equal(t, 2024, rec.PeriodYear)
	require.Equal(t, 2, rec.NoteCount)

	leaves, err := st.UnprocessedLeaves(ctx, scraper.LocaleEnglish, 0)
	require.NoError(t, err)
	require.Empty(t, leaves)

	// A later run has nothing left to do.
	sum, err = p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 0)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Locale(scraper.LocaleEnglish).Processed)
}

func TestExtractContentRejectsInvalidPage(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	seedLeaf(t, st, talkA)

	pages := newFakePages()
	short := goodFields()
	short.Body = "too short"
	pages.fields[talkA] = short

	p := testPipeline(t, st, pages, Config{Concurrency: 1})
	sum, err := p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Failed)

	_, ok, err := st.GetContent(ctx, talkA)
	require.NoError(t, err)
	require.False(t, ok)

	// The talk stays eligible for a later attempt.
	leaves, err := st.UnprocessedLeaves(ctx, scraper.LocaleEnglish, 0)
	require.NoError(t, err)
	require.Len(t, leaves, 1)

	entries, err := st.LogEntries(ctx, scraper.OpContent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, scraper.StatusFailure, entries[0].Status)
	require.Contains(t, entries[0].Message, "body")
}

func TestExtractContentRetriesTransientFailure(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	seedLeaf(t, st, talkA)

	pages := newFakePages()
	pages.fields[talkA] = goodFields()
	pages.failFor(talkA,
		scraper.NewFetchError(scraper.KindNetwork, talkA, errors.New("reset by peer")), 2)

	p := testPipeline(t, st, pages, Config{Concurrency: 1, RetryAttempts: 3})
	sum, err := p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Processed)
	require.Equal(t, 3, pages.callCount(talkA))
}

func TestExtractContentDoesNotRetryStructuralFailure(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	seedLeaf(t, st, talkA)

	pages := newFakePages()
	pages.failFor(talkA,
		scraper.NewFetchError(scraper.KindParse, talkA, errors.New("no content container")), 0)

	p := testPipeline(t, st, pages, Config{Concurrency: 1, RetryAttempts: 3})
	sum, err := p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Failed)
	require.Equal(t, 1, pages.callCount(talkA))
}

func TestExtractContentHonorsLimit(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	seedLeaf(t, st, talkA)
	seedLeaf(t, st, talkB)

	pages := newFakePages()
	pages.fields[talkA] = goodFields()
	pages.fields[talkB] = goodFields()

	p := testPipeline(t, st, pages, Config{Concurrency: 1})
	sum, err := p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 1)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Processed)

	leaves, err := st.UnprocessedLeaves(ctx, scraper.LocaleEnglish, 0)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
}

func TestExtractContentPreservesParagraphsInArtifact(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	seedLeaf(t, st, talkA)

	pages := newFakePages()
	f := goodFields()
	f.Body = "<p>" + strings.Repeat("The first paragraph keeps its own line. ", 3) + "</p>\n\n" +
		"<p>A second paragraph follows it.</p>\n\n" +
		"<p>And a third closes the talk.</p>"
	pages.fields[talkA] = f

	dir := t.TempDir()
	clock := fixedClock{at: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := Config{Concurrency: 1, RetryBaseDelay: time.Millisecond, TaskTimeout: 5 * time.Second}
	p := New(st, pages, artifacts.NewWriter(dir, zap.NewNop()), clock, zap.NewNop(), cfg)

	sum, err := p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Processed)

	reader := artifacts.NewReader(dir)
	paths, err := reader.Find(scraper.LocaleEnglish, "202404")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	art, err := reader.Parse(paths[0])
	require.NoError(t, err)
	paragraphs := strings.Split(art.Fields.Body, "\n\n")
	require.Len(t, paragraphs, 3)
	require.Equal(t, "A second paragraph follows it.", paragraphs[1])
	require.Equal(t, "And a third closes the talk.", paragraphs[2])
}

// interruptingPages cuts the run short during its second listing fetch, the
// way an operator interrupt lands mid-phase.
type interruptingPages struct {
	*fakePages
	cancel context.CancelFunc
	mu     sync.Mutex
	calls  int
}

func (f *interruptingPages) LeafLinks(ctx context.Context, collectionURL string, locale scraper.Locale) ([]scraper.LeafLink, error) {
	f.mu.Lock()
	f.calls++
	interrupted := f.calls == 2
	f.mu.Unlock()
	if interrupted {
		f.cancel()
		return nil, ctx.Err()
	}
	return f.fakePages.LeafLinks(ctx, collectionURL, locale)
}

func TestDiscoverLeavesResumesAfterInterrupt(t *testing.T) {
	listings := map[string][]scraper.LeafLink{
		confA: {{URL: talkA, Textual: true}, {URL: talkB, Textual: true}},
		confB: {{URL: talkB, Textual: true}},
	}
	seed := func(t *testing.T, st *store.Store) {
		t.Helper()
		ctx := context.Background()
		_, err := st.AddCollection(ctx, scraper.LocaleEnglish, confA, time.Now())
		require.NoError(t, err)
		_, err = st.AddCollection(ctx, scraper.LocaleEnglish, confB, time.Now())
		require.NoError(t, err)
	}

	// Baseline: the same corpus walked without interruption.
	baseline := testStore(t)
	seed(t, baseline)
	basePages := newFakePages()
	basePages.leaves = listings
	p := testPipeline(t, baseline, basePages, Config{Concurrency: 1})
	_, err := p.DiscoverLeaves(context.Background(), []scraper.Locale{scraper.LocaleEnglish})
	require.NoError(t, err)

	st := testStore(t)
	seed(t, st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inner := newFakePages()
	inner.leaves = listings
	pages := &interruptingPages{fakePages: inner, cancel: cancel}
	p = testPipeline(t, st, pages, Config{Concurrency: 1})

	_, err = p.DiscoverLeaves(ctx, []scraper.Locale{scraper.LocaleEnglish})
	require.ErrorIs(t, err, context.Canceled)

	// One conference made it through before the cut, the other stays pending.
	cols, err := st.UnprocessedCollections(context.Background(), scraper.LocaleEnglish)
	require.NoError(t, err)
	require.Len(t, cols, 1)

	// Restarting finishes the remaining work and converges on the same set.
	_, err = p.DiscoverLeaves(context.Background(), []scraper.Locale{scraper.LocaleEnglish})
	require.NoError(t, err)
	require.Equal(t, leafURLs(t, baseline), leafURLs(t, st))

	cols, err = st.UnprocessedCollections(context.Background(), scraper.LocaleEnglish)
	require.NoError(t, err)
	require.Empty(t, cols)
}

func TestExtractContentRenderTimeoutRecoversNextRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	seedLeaf(t, st, talkA)

	pages := newFakePages()
	pages.fields[talkA] = goodFields()
	pages.failFor(talkA,
		scraper.NewFetchError(scraper.KindRenderTimeout, talkA, errors.New("context deadline exceeded")), 1)

	p := testPipeline(t, st, pages, Config{Concurrency: 1, RetryAttempts: 3})
	sum, err := p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Failed)
	// A stalled render is not retried within the run.
	require.Equal(t, 1, pages.callCount(talkA))

	entries, err := st.LogEntries(ctx, scraper.OpContent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, scraper.StatusFailure, entries[0].Status)
	require.Equal(t, "render-timeout", entries[0].Message)

	leaves, err := st.UnprocessedLeaves(ctx, scraper.LocaleEnglish, 0)
	require.NoError(t, err)
	require.Len(t, leaves, 1)

	// The next run picks the talk up again.
	sum, err = p.ExtractContent(ctx, []scraper.Locale{scraper.LocaleEnglish}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Locale(scraper.LocaleEnglish).Processed)

	rec, ok, err := st.GetContent(ctx, talkA)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Think Celestial!", rec.Title)
}

func leafURLs(t *testing.T, st *store.Store) []string {
	t.Helper()
	leaves, err := st.UnprocessedLeaves(context.Background(), scraper.LocaleEnglish, 0)
	require.NoError(t, err)
	urls := make([]string, 0, len(leaves))
	for _, l := range leaves {
		urls = append(urls, l.ItemURL)
	}
	return urls
}

func seedLeaf(t *testing.T, st *store.Store, itemURL string) {
	t.Helper()
	_, err := st.AddLeaf(context.Background(), scraper.LeafRecord{
		CollectionURL: confA,
		ItemURL:       itemURL,
		Locale:        scraper.LocaleEnglish,
		DiscoveredAt:  time.Now(),
	})
	require.NoError(t, err)
}
