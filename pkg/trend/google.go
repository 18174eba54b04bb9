package trend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"
)

const (
	googleTrendsBaseURL = "https://trends.google.com"
	timeseriesWidget    = "TIMESERIES"
)

// SeriesFetcher returns the search-interest series for a keyword in a
// country. An empty series with a nil error means the keyword has no data.
type SeriesFetcher interface {
	InterestOverTime(ctx context.Context, keyword, country string) ([]float64, error)
}

// GoogleTrendsOptions configures the Google Trends client.
type GoogleTrendsOptions struct {
	BaseURL   string
	Language  string // hl parameter, e.g. "en-US"
	TZOffset  int    // minutes, e.g. 360
	Timeframe string // e.g. "today 3-m"
	Timeout   time.Duration
}

// GoogleTrends fetches interest-over-time series from Google Trends.
type GoogleTrends struct {
	client    *http.Client
	baseURL   string
	language  string
	tz        int
	timeframe string
}

// NewGoogleTrends creates a Google Trends client. It is safe for concurrent
// use and is meant to be created once and shared.
func NewGoogleTrends(opts GoogleTrendsOptions) *GoogleTrends {
	if opts.BaseURL == "" {
		opts.BaseURL = googleTrendsBaseURL
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.TZOffset == 0 {
		opts.TZOffset = 360
	}
	if opts.Timeframe == "" {
		opts.Timeframe = "today 3-m"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	jar, _ := cookiejar.New(nil)
	return &GoogleTrends{
		client:    &http.Client{Timeout: opts.Timeout, Jar: jar},
		baseURL:   opts.BaseURL,
		language:  opts.Language,
		tz:        opts.TZOffset,
		timeframe: opts.Timeframe,
	}
}

// InterestOverTime returns one interest value (0-100) per sample of the
// configured timeframe.
func (g *GoogleTrends) InterestOverTime(ctx context.Context, keyword, country string) ([]float64, error) {
	widget, err := g.explore(ctx, keyword, country)
	if err != nil {
		return nil, err
	}
	if widget == nil {
		return nil, nil
	}

	params := url.Values{}
	params.Set("hl", g.language)
	params.Set("tz", strconv.Itoa(g.tz))
	params.Set("req", string(widget.Request))
	params.Set("token", widget.Token)

	var result gtMultiline
	if err := g.getJSON(ctx, "/trends/api/widgetdata/multiline", params, &result); err != nil {
		return nil, fmt.Errorf("fetch interest over time %q: %w", keyword, err)
	}

	values := make([]float64, 0, len(result.Default.TimelineData))
	for _, point := range result.Default.TimelineData {
		if len(point.Value) == 0 {
			continue
		}
		values = append(values, point.Value[0])
	}
	return values, nil
}

func (g *GoogleTrends) explore(ctx context.Context, keyword, country string) (*gtWidget, error) {
	payload, err := json.Marshal(gtExploreRequest{
		ComparisonItem: []gtComparisonItem{{Keyword: keyword, Geo: country, Time: g.timeframe}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal explore request: %w", err)
	}

	params := url.Values{}
	params.Set("hl", g.language)
	params.Set("tz", strconv.Itoa(g.tz))
	params.Set("req", string(payload))

	var result gtExploreResult
	if err := g.getJSON(ctx, "/trends/api/explore", params, &result); err != nil {
		return nil, fmt.Errorf("explore %q: %w", keyword, err)
	}

	for i := range result.Widgets {
		if result.Widgets[i].ID == timeseriesWidget {
			return &result.Widgets[i], nil
		}
	}
	return nil, nil
}

func (g *GoogleTrends) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	reqURL := g.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "flowrank/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	// Responses carry an anti-XSSI prefix before the JSON object.
	if i := bytes.IndexByte(body, '{'); i > 0 {
		body = body[i:]
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

type gtExploreRequest struct {
	ComparisonItem []gtComparisonItem `json:"comparisonItem"`
	Category       int                `json:"category"`
	Property       string             `json:"property"`
}

type gtComparisonItem struct {
	Keyword string `json:"keyword"`
	Geo     string `json:"geo"`
	Time    string `json:"time"`
}

type gtExploreResult struct {
	Widgets []gtWidget `json:"widgets"`
}

type gtWidget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

type gtMultiline struct {
	Default struct {
		TimelineData []struct {
			Time  string    `json:"time"`
			Value []float64 `json:"value"`
		} `json:"timelineData"`
	} `json:"default"`
}
