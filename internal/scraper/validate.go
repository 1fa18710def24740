package scraper

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Minimum field lengths, measured after markup stripping and trimming.
const (
	MinTitleLen  = 3
	MinAuthorLen = 2
	MinBodyLen   = 100
)

var (
	stripOnce   sync.Once
	stripPolicy *bluemonday.Policy
)

// StripMarkup removes every HTML tag from s and collapses runs of whitespace
// into single spaces.
func StripMarkup(s string) string {
	stripOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})
	return strings.Join(strings.Fields(stripPolicy.Sanitize(s)), " ")
}

// Validate applies the completeness gate that every ContentRecord must pass
// before it is committed: title, author and body present with minimum
// lengths, no residual markup in the textual fields. A zero-value error means
// the fields may be persisted.
func Validate(f LeafFields) error {
	// Rune counts, not bytes: Spanish titles routinely carry accents.
	title := StripMarkup(f.Title)
	if utf8.RuneCountInString(title) < MinTitleLen {
		return &FieldError{Field: "title", Reason: reasonTooShort(title, MinTitleLen)}
	}
	author := StripMarkup(f.Author)
	if utf8.RuneCountInString(author) < MinAuthorLen {
		return &FieldError{Field: "author", Reason: reasonTooShort(author, MinAuthorLen)}
	}
	body := StripMarkup(f.Body)
	if utf8.RuneCountInString(body) < MinBodyLen {
		return &FieldError{Field: "body", Reason: reasonTooShort(body, MinBodyLen)}
	}
	return nil
}

// Clean returns a copy of f with markup stripped from the textual fields,
// ready for persistence. Paragraph breaks in the body survive the strip;
// callers validate first.
func Clean(f LeafFields) LeafFields {
	f.Title = StripMarkup(f.Title)
	f.Author = StripMarkup(f.Author)
	f.Role = StripMarkup(f.Role)
	f.Body = stripBodyMarkup(f.Body)
	return f
}

// stripBodyMarkup strips markup from each blank-line-separated paragraph
// without collapsing the breaks between them. StripMarkup alone would fold
// the whole body into a single line.
func stripBodyMarkup(body string) string {
	paragraphs := strings.Split(body, "\n\n")
	kept := paragraphs[:0]
	for _, p := range paragraphs {
		if stripped := StripMarkup(p); stripped != "" {
			kept = append(kept, stripped)
		}
	}
	return strings.Join(kept, "\n\n")
}

func reasonTooShort(v string, minLen int) string {
	if v == "" {
		return "missing"
	}
	return fmt.Sprintf("shorter than %d characters", minLen)
}
