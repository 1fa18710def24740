package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

func sampleRecord() (scraper.ContentRecord, scraper.LeafFields) {
	rec := scraper.ContentRecord{
		ItemURL:    "https://www.churchofjesuschrist.org/study/general-conference/2024/04/11nelson?lang=eng",
		Title:      "Think Celestial!",
		Author:     "Russell M. Nelson",
		Role:       "President of the Church",
		NoteCount:  2,
		Locale:     scraper.LocaleEnglish,
		PeriodYear: 2024,
		Period:     "2024-04",
		CapturedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	fields := scraper.LeafFields{
		Title:  rec.Title,
		Author: rec.Author,
		Role:   rec.Role,
		Body:   "When you are confronted with a dilemma, think celestial.\n\nAs you think celestial, your faith will increase.",
		Notes:  []string{"See Doctrine and Covenants 14:7.", "Moses 1:39."},
	}
	return rec, fields
}

func TestSaveAndParseRoundTrip(t *testing.T) {
	root := t.TempDir()
	rec, fields := sampleRecord()

	path, err := NewWriter(root, nil).Save(rec, fields)
	require.NoError(t, err)
	require.Equal(t,
		filepath.Join(root, "eng", "202404", "Think Celestial! (Russell M. Nelson).html"),
		path)

	art, err := NewReader(root).Parse(path)
	require.NoError(t, err)
	require.Equal(t, scraper.LocaleEnglish, art.Locale)
	require.Equal(t, "2024-04", art.Period.String())
	require.Equal(t, rec.ItemURL, art.URL)
	require.Equal(t, rec.CapturedAt, art.CapturedAt)
	require.Equal(t, fields.Title, art.Fields.Title)
	require.Equal(t, fields.Author, art.Fields.Author)
	require.Equal(t, fields.Role, art.Fields.Role)
	require.Equal(t, fields.Body, art.Fields.Body)
	require.Equal(t, fields.Notes, art.Fields.Notes)
}

func TestSaveReplacesExistingFile(t *testing.T) {
	root := t.TempDir()
	rec, fields := sampleRecord()
	w := NewWriter(root, nil)

	_, err := w.Save(rec, fields)
	require.NoError(t, err)

	fields.Body = "A different body entirely, long enough to notice the replacement took effect."
	path, err := w.Save(rec, fields)
	require.NoError(t, err)

	art, err := NewReader(root).Parse(path)
	require.NoError(t, err)
	require.Equal(t, fields.Body, art.Fields.Body)
}

func TestSaveEscapesMarkupInFields(t *testing.T) {
	root := t.TempDir()
	rec, fields := sampleRecord()
	fields.Body = "Beware of <script>alert(1)</script> in quoted text.\n\nSecond paragraph."

	path, err := NewWriter(root, nil).Save(rec, fields)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "<script>")

	art, err := NewReader(root).Parse(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(art.Fields.Body, "Beware of <script>alert(1)</script>"))
}

func TestFindFilters(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, nil)

	rec, fields := sampleRecord()
	_, err := w.Save(rec, fields)
	require.NoError(t, err)

	rec.Period = "2023-10"
	rec.Title = "Otra charla"
	rec.Locale = scraper.LocaleSpanish
	_, err = w.Save(rec, fields)
	require.NoError(t, err)

	all, err := NewReader(root).Find("", "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	eng, err := NewReader(root).Find(scraper.LocaleEnglish, "")
	require.NoError(t, err)
	require.Len(t, eng, 1)

	none, err := NewReader(root).Find(scraper.LocaleEnglish, "202310")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestFindMissingRoot(t *testing.T) {
	paths, err := NewReader(filepath.Join(t.TempDir(), "absent")).Find("", "")
	require.NoError(t, err)
	require.Empty(t, paths)
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "What Shall We Do", SanitizeFilename(`What Shall We Do?`))
	require.Equal(t, "AB", SanitizeFilename(`A<>:"/\|?*B`))
	require.Equal(t, "a b", SanitizeFilename("  a \t b  "))
}
