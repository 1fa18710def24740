package scraper

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validFields() LeafFields {
	return LeafFields{
		Title:  "The Power of Everyday Choices",
		Author: "Dale G. Renlund",
		Role:   "Of the Quorum of the Twelve Apostles",
		Body:   strings.Repeat("a", 200),
	}
}

func TestValidateAccepts(t *testing.T) {
	t.Parallel()
	require.NoError(t, Validate(validFields()))
}

func TestValidateBodyBoundary(t *testing.T) {
	t.Parallel()

	f := validFields()
	f.Body = strings.Repeat("x", 99)
	err := Validate(f)
	require.Error(t, err)
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "body", fieldErr.Field)

	f.Body = strings.Repeat("x", 100)
	require.NoError(t, Validate(f))
}

func TestValidateTitleAndAuthor(t *testing.T) {
	t.Parallel()

	f := validFields()
	f.Title = "ab"
	err := Validate(f)
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "title", fieldErr.Field)

	f = validFields()
	f.Author = "x"
	err = Validate(f)
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "author", fieldErr.Field)

	f = validFields()
	f.Author = ""
	err = Validate(f)
	require.ErrorAs(t, err, &fieldErr)
	require.Contains(t, fieldErr.Reason, "missing")
}

func TestValidateStripsMarkupBeforeMeasuring(t *testing.T) {
	t.Parallel()

	// Markup does not count toward the minimum lengths.
	f := validFields()
	f.Body = "<p><b></b></p>" + strings.Repeat("y", 99) + "<br/>"
	err := Validate(f)
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "body", fieldErr.Field)
}

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	require.Equal(t, "By Jeffrey R. Holland", StripMarkup("<p class=\"author\">By  Jeffrey R. Holland</p>"))
	require.Equal(t, "one two", StripMarkup("one\n\t <span>two</span>"))
}

func TestClean(t *testing.T) {
	t.Parallel()

	f := Clean(LeafFields{Title: "<h1>Title Here</h1>", Author: "<i>Someone Else</i>", Body: "<p>text</p>"})
	require.Equal(t, "Title Here", f.Title)
	require.Equal(t, "Someone Else", f.Author)
	require.Equal(t, "text", f.Body)
}

func TestCleanKeepsParagraphBreaks(t *testing.T) {
	t.Parallel()

	f := Clean(LeafFields{
		Title:  "Title Here",
		Author: "Someone Else",
		Body:   "<p>first  paragraph</p>\n\n<p>second</p>\n\n\n\nthird",
	})
	require.Equal(t, "first paragraph\n\nsecond\n\nthird", f.Body)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	require.True(t, IsTransient(NewFetchError(KindNetwork, "u", errors.New("refused"))))
	require.False(t, IsTransient(NewFetchError(KindParse, "u", errors.New("no title"))))
	require.False(t, IsTransient(NewFetchError(KindRenderTimeout, "u", errors.New("deadline"))))
	require.False(t, IsTransient(&FieldError{Field: "body", Reason: "missing"}))
	require.False(t, IsTransient(nil))
}

func TestFailureCause(t *testing.T) {
	t.Parallel()

	require.Equal(t, "render-timeout", FailureCause(NewFetchError(KindRenderTimeout, "u", errors.New("deadline"))))
	require.Contains(t, FailureCause(&FieldError{Field: "body", Reason: "missing"}), "body")
}
