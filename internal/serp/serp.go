// Package serp scrapes the estimated number of search results for keywords.
package serp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResultStatsSelector locates the "About N results" line on a results page.
const ResultStatsSelector = "#result-stats"

// ErrUnparsableCount means the result-stats element held no digits.
var ErrUnparsableCount = errors.New("serp: result count has no digits")

var digitRun = regexp.MustCompile(`[0-9,]+`)

// Count is the scrape outcome for one keyword. Value is nil when the page had
// no result-stats element or when Err is set.
type Count struct {
	Term  string
	Value *int64
	Err   error
}

// ResultCounter estimates result counts for a batch of keywords, returning
// one Count per term in input order.
type ResultCounter interface {
	Counts(ctx context.Context, terms []string) []Count
}

// BlockedError reports a results page replaced by a bot-protection challenge.
type BlockedError struct {
	Source string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("serp: blocked by %s", e.Source)
}

// ExtractResultStats returns the text of the result-stats element, and false
// when the page has none.
func ExtractResultStats(html []byte) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("serp: parse html: %w", err)
	}
	sel := doc.Find(ResultStatsSelector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return strings.TrimSpace(sel.Text()), true, nil
}

// ParseResultCount reads the first run of digits and commas in text, so
// "About 1,234,000 results (0.41 seconds)" yields 1234000.
func ParseResultCount(text string) (int64, error) {
	for _, run := range digitRun.FindAllString(text, -1) {
		digits := strings.ReplaceAll(run, ",", "")
		if digits == "" {
			continue
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("serp: parse %q: %w", run, err)
		}
		return n, nil
	}
	return 0, ErrUnparsableCount
}
