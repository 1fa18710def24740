package scraper

import (
	"fmt"
	"regexp"
	"strconv"
)

// Period is the temporal placement of a collection: a conference year plus
// session month. The source encodes it as a compact "YYYYMM" directory token;
// the store keeps the canonical "YYYY-MM" form.
type Period struct {
	Year  int
	Month int
}

// Conference sessions have run since 1971 in this archive; the upper bound
// guards against garbage tokens rather than predicting the future precisely.
const (
	minPeriodYear = 1971
	maxPeriodYear = 2030
)

var leafPeriodRe = regexp.MustCompile(`/general-conference/(\d{4})/(\d{2})/`)

// ParsePeriodToken parses a compact "YYYYMM" token. Malformed tokens are
// rejected rather than guessed at.
func ParsePeriodToken(token string) (Period, error) {
	if len(token) != 6 {
		return Period{}, fmt.Errorf("period token %q: want 6 digits (YYYYMM)", token)
	}
	year, err := strconv.Atoi(token[:4])
	if err != nil {
		return Period{}, fmt.Errorf("period token %q: non-numeric year", token)
	}
	month, err := strconv.Atoi(token[4:])
	if err != nil {
		return Period{}, fmt.Errorf("period token %q: non-numeric month", token)
	}
	return newPeriod(year, month)
}

// PeriodFromURL derives the period from a talk URL of the form
// .../general-conference/YYYY/MM/slug.
func PeriodFromURL(itemURL string) (Period, error) {
	m := leafPeriodRe.FindStringSubmatch(itemURL)
	if m == nil {
		return Period{}, fmt.Errorf("no period segment in url %q", itemURL)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return newPeriod(year, month)
}

func newPeriod(year, month int) (Period, error) {
	if year < minPeriodYear || year > maxPeriodYear {
		return Period{}, fmt.Errorf("period year %d out of range [%d, %d]", year, minPeriodYear, maxPeriodYear)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("period month %d out of range [1, 12]", month)
	}
	return Period{Year: year, Month: month}, nil
}

// String returns the canonical "YYYY-MM" form stored in ContentRecords.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Token returns the compact "YYYYMM" form used for artifact directory names.
func (p Period) Token() string {
	return fmt.Sprintf("%04d%02d", p.Year, p.Month)
}
