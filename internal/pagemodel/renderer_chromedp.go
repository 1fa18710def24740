package pagemodel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// ErrRendererDisabled indicates note rendering has been disabled via
// configuration.
var ErrRendererDisabled = errors.New("notes renderer disabled")

// RendererConfig controls the headless browser used for footnote extraction.
type RendererConfig struct {
	Enabled        bool
	Timeout        time.Duration
	MaxConcurrency int
	UserAgent      string
}

// ChromedpRenderer extracts the footnotes that only exist after the page's
// related-content script runs.
type ChromedpRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	timeout         time.Duration
	logger          *zap.Logger
}

var _ scraper.NotesRenderer = (*ChromedpRenderer)(nil)

// NewChromedpRenderer starts a shared headless browser. Callers must Close it.
func NewChromedpRenderer(cfg RendererConfig, logger *zap.Logger) (*ChromedpRenderer, error) {
	if !cfg.Enabled || cfg.MaxConcurrency <= 0 {
		return nil, ErrRendererDisabled
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.MaxConcurrency),
		timeout:         cfg.Timeout,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *ChromedpRenderer) Close() {
	if r == nil {
		return
	}
	r.browserCancel()
	r.allocatorCancel()
}

// RenderNotes loads the talk page in the shared browser, clicks the related
// content toggle, and reads the note list items. A deadline converts to the
// typed render-timeout error so the pipeline can log the cause and leave the
// leaf retryable.
func (r *ChromedpRenderer) RenderNotes(ctx context.Context, itemURL string) ([]string, error) {
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	runCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	// The tab context descends from the shared browser, not from ctx, so the
	// caller's cancellation has to be forwarded to abort an in-flight render.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var noteTexts []string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(itemURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		clickIfPresent(`button[data-testid="related-content"]`),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.Evaluate(`Array.from(document.querySelectorAll('li[id^="note"]')).map(n => n.innerText)`, &noteTexts),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, scraper.NewFetchError(scraper.KindRenderTimeout, itemURL, err)
		}
		return nil, scraper.NewFetchError(scraper.KindNetwork, itemURL, err)
	}

	notes := make([]string, 0, len(noteTexts))
	for _, text := range noteTexts {
		text = strings.Join(strings.Fields(text), " ")
		if len(text) > 5 {
			notes = append(notes, text)
		}
	}
	r.logger.Debug("notes rendered", zap.String("url", itemURL), zap.Int("count", len(notes)))
	return notes, nil
}

// clickIfPresent clicks the first match and ignores its absence; archived
// pages predate the related-content toggle.
func clickIfPresent(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var exists bool
		if err := chromedp.Evaluate(fmt.Sprintf("document.querySelector(%q) !== null", selector), &exists).Do(ctx); err != nil {
			return err
		}
		if !exists {
			return nil
		}
		return chromedp.Click(selector, chromedp.ByQuery).Do(ctx)
	})
}

// NoopRenderer satisfies scraper.NotesRenderer when rendering is disabled.
type NoopRenderer struct{}

// RenderNotes returns no notes.
func (NoopRenderer) RenderNotes(context.Context, string) ([]string, error) {
	return nil, nil
}
