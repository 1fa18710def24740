package pagemodel

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fieldLocator knows where one layout era keeps the talk fields. The site has
// been redesigned more than once over five decades of archive pages, so the
// model probes the modern layout first and falls back to the legacy one.
type fieldLocator interface {
	title(doc *goquery.Document) string
	author(doc *goquery.Document) string
	role(doc *goquery.Document) string
	body(doc *goquery.Document) string
}

func selectLocator(doc *goquery.Document) fieldLocator {
	if doc.Find("[data-testid='title'], .title-block, .byline").Length() > 0 {
		return modernLocator{}
	}
	return legacyLocator{}
}

var bylinePrefixRe = regexp.MustCompile(`(?i)^(By|Por)\s+`)

// modernLocator handles the current study-app layout with byline blocks and
// data-testid hooks.
type modernLocator struct{}

func (modernLocator) title(doc *goquery.Document) string {
	return probe(doc, []string{"h1.title", ".title-block h1", "[data-testid='title']", "h1"})
}

func (modernLocator) author(doc *goquery.Document) string {
	author := probe(doc, []string{".byline .author", ".author-name", "[data-testid='author']", ".byline p:first-of-type"})
	return bylinePrefixRe.ReplaceAllString(author, "")
}

func (modernLocator) role(doc *goquery.Document) string {
	role := probe(doc, []string{".byline .calling", ".author-calling", "[data-testid='calling']"})
	if role != "" {
		return role
	}
	// Older byline markup keeps the calling as the second line of the block.
	lines := nonEmptyLines(doc.Find(".byline").First())
	if len(lines) >= 2 {
		return lines[1]
	}
	return ""
}

func (modernLocator) body(doc *goquery.Document) string {
	return collectParagraphs(doc, []string{".body-block", ".study-content", "[data-testid='content']"})
}

// legacyLocator handles the pre-redesign archive pages with flat class names.
type legacyLocator struct{}

func (legacyLocator) title(doc *goquery.Document) string {
	return probe(doc, []string{"h1", ".title", ".study-title"})
}

func (legacyLocator) author(doc *goquery.Document) string {
	author := probe(doc, []string{".author", "p.author", ".study-author"})
	return bylinePrefixRe.ReplaceAllString(author, "")
}

func (legacyLocator) role(doc *goquery.Document) string {
	return probe(doc, []string{".calling", ".position", ".study-calling"})
}

func (legacyLocator) body(doc *goquery.Document) string {
	return collectParagraphs(doc, []string{".content", ".articleBody", "body"})
}

// probe returns the text of the first selector that matches a non-empty
// element.
func probe(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// collectParagraphs gathers the substantial paragraphs under the first
// matching container. Short paragraphs are byline fragments and navigation
// crumbs, not body text.
func collectParagraphs(doc *goquery.Document, selectors []string) string {
	const minParagraphLen = 20
	for _, sel := range selectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		var paragraphs []string
		container.Find("p").Each(func(_ int, p *goquery.Selection) {
			text := strings.TrimSpace(p.Text())
			if len(text) >= minParagraphLen {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			return strings.Join(paragraphs, "\n\n")
		}
	}
	return ""
}

func nonEmptyLines(sel *goquery.Selection) []string {
	var lines []string
	sel.Children().Each(func(_ int, child *goquery.Selection) {
		if text := strings.TrimSpace(child.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return lines
}
