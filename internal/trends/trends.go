// Package trends looks up related search queries on Google Trends.
package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/nichescout/internal/metrics"
	"github.com/FranksOps/nichescout/pkg/httpclient"
)

const (
	DefaultBaseURL = "https://trends.google.com"

	relatedWidgetID = "RELATED_QUERIES"
	dateLayout      = "2006-01-02"
)

// ErrNoWidget means the explore response carried no related-queries widget.
var ErrNoWidget = errors.New("trends: no related queries widget")

// Query is one related-queries lookup.
type Query struct {
	Keyword string
	Start   time.Time
	End     time.Time
	// Geo is a region code such as "US". It is upper-cased before sending.
	Geo string
}

// TrendTerm is one related query in rank order.
type TrendTerm struct {
	Query          string  `json:"query"`
	Value          float64 `json:"value"`
	FormattedValue string  `json:"formattedValue"`
	Link           string  `json:"link"`
}

// Client talks to the Trends explore and widgetdata endpoints.
type Client struct {
	HTTP     *httpclient.Client
	BaseURL  string
	Language string
	// TZ is the offset in minutes Trends uses to bucket dates.
	TZ     int
	Logger *slog.Logger
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Geo     string `json:"geo"`
	Time    string `json:"time"`
}

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

type exploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type relatedResponse struct {
	Default struct {
		RankedList []struct {
			RankedKeyword []TrendTerm `json:"rankedKeyword"`
		} `json:"rankedList"`
	} `json:"default"`
}

// Lookup returns the top related queries for q, in the order Trends ranks
// them. Only the first ranked list is used; the rising list is ignored.
func (c *Client) Lookup(ctx context.Context, q Query) (terms []TrendTerm, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordLookup("trends", time.Since(start), err)
		if err != nil {
			c.logger().Error("trend lookup failed", "keyword", q.Keyword, "err", err)
		}
	}()

	token, widgetReq, err := c.explore(ctx, q)
	if err != nil {
		return nil, err
	}

	params := c.params()
	params.Set("req", string(widgetReq))
	params.Set("token", token)

	var related relatedResponse
	if err := c.getJSON(ctx, "/trends/api/widgetdata/relatedsearches", params, &related); err != nil {
		return nil, err
	}

	lists := related.Default.RankedList
	if len(lists) == 0 {
		return []TrendTerm{}, nil
	}
	terms = lists[0].RankedKeyword
	if terms == nil {
		terms = []TrendTerm{}
	}
	c.logger().Debug("trend lookup", "keyword", q.Keyword, "terms", len(terms))
	return terms, nil
}

func (c *Client) explore(ctx context.Context, q Query) (string, json.RawMessage, error) {
	reqBody, err := json.Marshal(exploreRequest{
		ComparisonItem: []comparisonItem{{
			Keyword: q.Keyword,
			Geo:     strings.ToUpper(q.Geo),
			Time:    TimeRange(q.Start, q.End),
		}},
	})
	if err != nil {
		return "", nil, fmt.Errorf("trends: encode explore request: %w", err)
	}

	params := c.params()
	params.Set("req", string(reqBody))

	var explore exploreResponse
	if err := c.getJSON(ctx, "/trends/api/explore", params, &explore); err != nil {
		return "", nil, err
	}
	for _, w := range explore.Widgets {
		if strings.Contains(w.ID, relatedWidgetID) {
			return w.Token, w.Request, nil
		}
	}
	return "", nil, ErrNoWidget
}

func (c *Client) params() url.Values {
	v := url.Values{}
	hl := c.Language
	if hl == "" {
		hl = "en-US"
	}
	v.Set("hl", hl)
	v.Set("tz", fmt.Sprint(c.TZ))
	return v
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	endpoint := c.baseURL() + path + "?" + params.Encode()
	resp, err := c.HTTP.Get(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("trends: %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trends: %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(stripPrefix(resp.Body), dst); err != nil {
		return fmt.Errorf("trends: %s: decode: %w", path, err)
	}
	return nil
}

// stripPrefix drops the anti-hijacking junk (")]}'," and friends) Trends
// puts before the JSON document.
func stripPrefix(body []byte) []byte {
	if i := bytes.IndexByte(body, '{'); i > 0 {
		return body[i:]
	}
	return body
}

// TimeRange formats a Trends time window as "YYYY-MM-DD YYYY-MM-DD".
func TimeRange(start, end time.Time) string {
	return start.Format(dateLayout) + " " + end.Format(dateLayout)
}
