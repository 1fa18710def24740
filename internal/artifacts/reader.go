package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// Artifact is one saved talk read back from disk, carrying everything needed
// to rebuild its content row.
type Artifact struct {
	Path       string
	Locale     scraper.Locale
	Period     scraper.Period
	URL        string
	CapturedAt time.Time
	Fields     scraper.LeafFields
}

// Reader scans and parses saved talk artifacts under a root directory.
type Reader struct {
	root string
}

// NewReader returns a Reader rooted at dir.
func NewReader(dir string) *Reader {
	return &Reader{root: dir}
}

// Find lists artifact paths, optionally narrowed to one locale and one
// period token ("YYYYMM"). Empty filters match everything. Paths come back
// sorted for stable processing order.
func (r *Reader) Find(locale scraper.Locale, periodTok string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(r.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		rel, rerr := filepath.Rel(r.root, path)
		if rerr != nil {
			return rerr
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}
		if locale != "" && parts[0] != string(locale) {
			return nil
		}
		if periodTok != "" && parts[1] != periodTok {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Parse reads one artifact file back into its structured form. The locale
// and period come from the directory layout, the fields from the document
// itself.
func (r *Reader) Parse(path string) (Artifact, error) {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact path %s: %w", path, err)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return Artifact{}, fmt.Errorf("artifact path %s: expected <locale>/<period>/<file>.html", rel)
	}
	locale, err := scraper.ParseLocale(parts[0])
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact path %s: %w", rel, err)
	}
	period, err := scraper.ParsePeriodToken(parts[1])
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact path %s: %w", rel, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return Artifact{}, fmt.Errorf("parse artifact %s: %w", rel, err)
	}

	art := Artifact{
		Path:   path,
		Locale: locale,
		Period: period,
		URL:    doc.Find(`meta[name="source-url"]`).AttrOr("content", ""),
		Fields: scraper.LeafFields{
			Title:  strings.TrimSpace(doc.Find("h1.title").First().Text()),
			Author: strings.TrimSpace(doc.Find("p.author").First().Text()),
			Role:   strings.TrimSpace(doc.Find("p.calling").First().Text()),
		},
	}

	if raw := doc.Find(`meta[name="captured-at"]`).AttrOr("content", ""); raw != "" {
		if at, perr := time.Parse(time.RFC3339, raw); perr == nil {
			art.CapturedAt = at
		}
	}

	var paragraphs []string
	doc.Find("div.content p").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	art.Fields.Body = strings.Join(paragraphs, "\n\n")

	doc.Find("ol.notes li").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			art.Fields.Notes = append(art.Fields.Notes, text)
		}
	})

	return art, nil
}
