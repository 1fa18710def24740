// Package pagemodel implements the scraper.PageModel against the live site:
// colly for static pages, goquery selector probing across layout eras for
// field location, and a chromedp renderer for the dynamic footnotes.
package pagemodel

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// Config carries the page model knobs loaded from Viper.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
}

// Colly is the production PageModel implementation.
type Colly struct {
	base     *colly.Collector
	renderer scraper.NotesRenderer
	logger   *zap.Logger
}

var _ scraper.PageModel = (*Colly)(nil)

// New constructs the page model. A nil renderer disables note extraction,
// which leaves every NoteCount at zero but keeps the pipeline running on
// hosts without a browser.
func New(cfg Config, renderer scraper.NotesRenderer, logger *zap.Logger) *Colly {
	if renderer == nil {
		renderer = NoopRenderer{}
	}
	return &Colly{
		base:     newCollector(cfg),
		renderer: renderer,
		logger:   logger,
	}
}

// CollectionLinks fetches one index page and returns every conference session
// URL it links to.
func (m *Colly) CollectionLinks(ctx context.Context, locale scraper.Locale, indexURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, pageURL, err := m.fetchDoc(indexURL)
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		abs := resolveURL(pageURL, href)
		if abs == "" || seen[abs] || !isCollectionURL(abs, pageURL.Host) {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})
	m.logger.Debug("collection links located",
		zap.String("index_url", indexURL),
		zap.String("locale", string(locale)),
		zap.Int("count", len(links)),
	)
	return links, nil
}

// LeafLinks fetches a collection page and returns its talk links. Entries
// whose link row carries a video marker and no text duration are flagged
// non-textual so phase 2 can skip them.
func (m *Colly) LeafLinks(ctx context.Context, collectionURL string, locale scraper.Locale) ([]scraper.LeafLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, pageURL, err := m.fetchDoc(collectionURL)
	if err != nil {
		return nil, err
	}

	var links []scraper.LeafLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		abs := resolveURL(pageURL, href)
		if abs == "" || !isLeafURL(abs, pageURL.Host) {
			return
		}
		links = append(links, scraper.LeafLink{URL: abs, Textual: isTextualEntry(sel)})
	})
	return links, nil
}

// isTextualEntry distinguishes talk links from video-only session entries,
// which the source marks with a media class on the link or its list row.
func isTextualEntry(sel *goquery.Selection) bool {
	if sel.HasClass("video-only") {
		return false
	}
	if v, ok := sel.Attr("data-content-type"); ok && v == "video" {
		return false
	}
	parent := sel.Closest("li")
	if parent.Length() > 0 && parent.HasClass("video-only") {
		return false
	}
	return true
}

// LeafFields fetches a talk page and locates the raw candidate fields, then
// asks the renderer for the dynamically loaded footnotes. A renderer failure
// fails the whole lookup; the caller logs it and the leaf stays retryable.
func (m *Colly) LeafFields(ctx context.Context, itemURL string, locale scraper.Locale) (scraper.LeafFields, error) {
	if err := ctx.Err(); err != nil {
		return scraper.LeafFields{}, err
	}
	doc, _, err := m.fetchDoc(itemURL)
	if err != nil {
		return scraper.LeafFields{}, err
	}

	loc := selectLocator(doc)
	fields := scraper.LeafFields{
		Title:  loc.title(doc),
		Author: loc.author(doc),
		Role:   loc.role(doc),
		Body:   loc.body(doc),
	}

	notes, err := m.renderer.RenderNotes(ctx, itemURL)
	if err != nil {
		return scraper.LeafFields{}, err
	}
	fields.Notes = notes
	return fields, nil
}

func (m *Colly) fetchDoc(rawURL string) (*goquery.Document, *url.URL, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, scraper.NewFetchError(scraper.KindParse, rawURL, err)
	}
	body, err := m.fetch(rawURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, scraper.NewFetchError(scraper.KindParse, rawURL, fmt.Errorf("parse html: %w", err))
	}
	return doc, pageURL, nil
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
