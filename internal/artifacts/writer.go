// Package artifacts saves extracted talks as self-contained HTML files and
// reads them back. The file layout mirrors the corpus hierarchy:
// <root>/<locale>/<YYYYMM>/<Title (Author)>.html. Metadata recovery rebuilds
// database rows from these files alone, so the writer embeds everything a
// content row needs.
package artifacts

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

const fileTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="source-url" content="{{.URL}}">
<meta name="captured-at" content="{{.CapturedAt}}">
<title>{{.Title}}</title>
</head>
<body>
<article>
<h1 class="title">{{.Title}}</h1>
<p class="author">{{.Author}}</p>
{{if .Role}}<p class="calling">{{.Role}}</p>
{{end}}<div class="content">
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}</div>
{{if .Notes}}<ol class="notes">
{{range .Notes}}<li id="note{{.Seq}}">{{.Text}}</li>
{{end}}</ol>
{{end}}</article>
</body>
</html>
`

var tmpl = template.Must(template.New("talk").Parse(fileTemplate))

type templateData struct {
	Lang       string
	URL        string
	CapturedAt string
	Title      string
	Author     string
	Role       string
	Paragraphs []string
	Notes      []templateNote
}

type templateNote struct {
	Seq  int
	Text string
}

// Writer saves talk artifacts under a root directory.
type Writer struct {
	root   string
	logger *zap.Logger
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{root: dir, logger: logger}
}

// Save writes the talk to <root>/<locale>/<YYYYMM>/<Title (Author)>.html,
// replacing any earlier file, and returns the path.
func (w *Writer) Save(rec scraper.ContentRecord, fields scraper.LeafFields) (string, error) {
	dir := filepath.Join(w.root, string(rec.Locale), periodToken(rec.Period))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	name := SanitizeFilename(fmt.Sprintf("%s (%s)", rec.Title, rec.Author)) + ".html"
	path := filepath.Join(dir, name)

	notes := make([]templateNote, 0, len(fields.Notes))
	for i, text := range fields.Notes {
		notes = append(notes, templateNote{Seq: i + 1, Text: text})
	}
	data := templateData{
		Lang:       string(rec.Locale),
		URL:        rec.ItemURL,
		CapturedAt: rec.CapturedAt.UTC().Format(time.RFC3339),
		Title:      rec.Title,
		Author:     rec.Author,
		Role:       rec.Role,
		Paragraphs: strings.Split(fields.Body, "\n\n"),
		Notes:      notes,
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render artifact: %w", err)
	}
	if err := os.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	w.logger.Debug("artifact saved", zap.String("path", path))
	return path, nil
}

// SanitizeFilename strips characters that are unsafe in file names and
// collapses the remaining whitespace.
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		return r
	}, name)
	return strings.Join(strings.Fields(cleaned), " ")
}

// periodToken turns the canonical "YYYY-MM" period into the directory token
// "YYYYMM".
func periodToken(period string) string {
	return strings.ReplaceAll(period, "-", "")
}
