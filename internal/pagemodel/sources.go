package pagemodel

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// Decade archive segments available per locale. The Spanish archive starts a
// decade later than the English one.
var decadeSegments = map[scraper.Locale][]string{
	scraper.LocaleEnglish: {"20102019", "20002009", "19901999", "19801989"},
	scraper.LocaleSpanish: {"20102019", "20002009", "19901999"},
}

// Sessions held each year, as zero-padded month tokens.
var sessionMonths = []string{"04", "10"}

// IndexSources enumerates every index page phase 1 should read for a locale:
// the primary listing, the decade archives, and (English only) the individual
// year pages for 1971-1979 which never got a decade index.
func IndexSources(locale scraper.Locale, baseURL string) ([]string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	origin := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	sources := []string{baseURL}
	for _, seg := range decadeSegments[locale] {
		sources = append(sources, fmt.Sprintf("%s/study/general-conference/%s?lang=%s", origin, seg, locale))
	}
	if locale == scraper.LocaleEnglish {
		for year := 1971; year <= 1979; year++ {
			for _, month := range sessionMonths {
				sources = append(sources, fmt.Sprintf("%s/study/general-conference/%d/%s?lang=%s", origin, year, month, locale))
			}
		}
	}
	return sources, nil
}

// Hosts that legitimately serve the corpus; the historical domain still
// resolves via redirect.
var knownHosts = map[string]bool{
	"www.churchofjesuschrist.org":        true,
	"churchofjesuschrist.org":            true,
	"conference.churchofjesuschrist.org": true,
	"conference.lds.org":                 true,
}

func allowedHost(host, pageHost string) bool {
	return host == pageHost || knownHosts[host]
}

// isCollectionURL reports whether u points at a conference session index
// (.../study/general-conference/YYYY/MM), excluding decade pages, speaker and
// topic indexes, and individual talks.
func isCollectionURL(u string, pageHost string) bool {
	parsed, err := url.Parse(u)
	if err != nil || !allowedHost(parsed.Host, pageHost) {
		return false
	}
	parts := conferencePathParts(parsed.Path)
	if len(parts) != 2 {
		return false
	}
	if _, err := scraper.ParsePeriodToken(parts[0] + parts[1]); err != nil {
		return false
	}
	return true
}

// isLeafURL reports whether u points at an individual talk page
// (.../study/general-conference/YYYY/MM/slug), excluding whole-session media
// pages and index pages.
func isLeafURL(u string, pageHost string) bool {
	parsed, err := url.Parse(u)
	if err != nil || !allowedHost(parsed.Host, pageHost) {
		return false
	}
	if strings.Contains(strings.ToLower(parsed.Path), "session") {
		return false
	}
	parts := conferencePathParts(parsed.Path)
	if len(parts) != 3 {
		return false
	}
	if _, err := scraper.ParsePeriodToken(parts[0] + parts[1]); err != nil {
		return false
	}
	return parts[2] != ""
}

// conferencePathParts returns the path segments after
// /study/general-conference, or nil when the path is not under it or touches
// one of the special index trees.
func conferencePathParts(path string) []string {
	for _, special := range []string{"/speakers/", "/manual/", "/topics/"} {
		if strings.Contains(path, special) {
			return nil
		}
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "study" || parts[1] != "general-conference" {
		return nil
	}
	return parts[2:]
}
