// Package domains suggests registered domain names for keywords via domainsdb.info.
package domains

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/nichescout/internal/metrics"
	"github.com/FranksOps/nichescout/pkg/httpclient"
)

const DefaultBaseURL = "https://api.domainsdb.info"

// Denylist drops country TLDs and adult terms from suggestions. Matching is a
// case-sensitive substring search.
var Denylist = regexp.MustCompile(`\.ru|\.xxx|\.se|\.de|\.dk|\.za|\.fr|\.au|\.ch|sex|porno|fuck|cock`)

// Result is the lookup outcome for one keyword.
type Result struct {
	Term    string
	Domains []string
	Err     error
}

// Client queries the domainsdb search endpoint.
type Client struct {
	HTTP    *httpclient.Client
	BaseURL string
	Logger  *slog.Logger
}

type searchResponse struct {
	Domains []struct {
		Domain string `json:"domain"`
	} `json:"domains"`
}

// Lookup fetches candidates for every term at once. The result has the same
// length and order as terms; a failed request only sets Err on its own item.
func (c *Client) Lookup(ctx context.Context, terms []string) []Result {
	results := make([]Result, len(terms))

	var g errgroup.Group
	for i, term := range terms {
		results[i].Term = term
		g.Go(func() error {
			domains, err := c.search(ctx, term)
			results[i].Domains = domains
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Client) search(ctx context.Context, term string) (domains []string, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordLookup("domainsdb", time.Since(start), err)
		if err != nil {
			c.logger().Warn("domain lookup failed", "term", term, "err", err)
		}
	}()

	params := url.Values{}
	params.Set("limit", "5")
	params.Set("country", "us")
	params.Set("domain", term)

	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	resp, err := c.HTTP.Get(ctx, base+"/v1/domains/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("domains: %q: %w", term, err)
	}
	// domainsdb answers 404 when nothing matches.
	if resp.StatusCode == http.StatusNotFound {
		return []string{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("domains: %q: unexpected status %d", term, resp.StatusCode)
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("domains: %q: decode: %w", term, err)
	}

	domains = make([]string, 0, len(body.Domains))
	for _, d := range body.Domains {
		if d.Domain == "" || Denylist.MatchString(d.Domain) {
			continue
		}
		domains = append(domains, d.Domain)
	}
	return domains, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
