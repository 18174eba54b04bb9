package trend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable reports that the trend signal could not be fetched.
var ErrUnavailable = errors.New("trend unavailable")

// Classifier looks up and classifies search interest for keywords.
type Classifier struct {
	fetcher SeriesFetcher
	cache   Cache
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// ClassifierOption customizes a Classifier.
type ClassifierOption func(*Classifier)

// WithCache caches successful lookups for ttl.
func WithCache(c Cache, ttl time.Duration) ClassifierOption {
	return func(cl *Classifier) {
		cl.cache = c
		cl.ttl = ttl
	}
}

// WithTimeout bounds each upstream lookup.
func WithTimeout(d time.Duration) ClassifierOption {
	return func(cl *Classifier) { cl.timeout = d }
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(l *zap.Logger) ClassifierOption {
	return func(cl *Classifier) { cl.logger = l }
}

// NewClassifier creates a classifier over fetcher.
func NewClassifier(fetcher SeriesFetcher, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		fetcher: fetcher,
		timeout: 10 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches and classifies the series for keyword in country. Fetch
// failures are returned wrapped in ErrUnavailable.
func (c *Classifier) Lookup(ctx context.Context, keyword, country string) (Trend, error) {
	key := cacheKey(keyword, country)
	if c.cache != nil {
		if t, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return t, nil
		} else if err != nil {
			c.logger.Debug("trend cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	if c.fetcher == nil {
		return Trend{}, fmt.Errorf("%w: no fetcher configured", ErrUnavailable)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	values, err := c.fetcher.InterestOverTime(fetchCtx, keyword, country)
	if err != nil {
		return Trend{}, fmt.Errorf("%w: %s/%s: %v", ErrUnavailable, keyword, country, err)
	}

	t := Classify(values)
	t.MonthlyVolume = EstimateMonthlyVolume(keyword, t.AvgInterest)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, t, c.ttl); err != nil {
			c.logger.Debug("trend cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return t, nil
}

// OrDefault applies the fail-open policy to a Lookup result: any error
// yields Default.
func OrDefault(t Trend, err error) Trend {
	if err != nil {
		return Default()
	}
	return t
}

func cacheKey(keyword, country string) string {
	return strings.ToLower(strings.TrimSpace(keyword)) + "|" + strings.ToUpper(strings.TrimSpace(country))
}
