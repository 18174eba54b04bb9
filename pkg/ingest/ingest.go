// Package ingest runs the per-(platform, country) ingestion jobs: fetch raw
// items, classify search interest, score, and upsert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/flowrank/internal/metrics"
	"github.com/elonfeng/flowrank/pkg/score"
	"github.com/elonfeng/flowrank/pkg/source"
	"github.com/elonfeng/flowrank/pkg/trend"
	"github.com/elonfeng/flowrank/pkg/workflow"
)

// Trigger statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Job is one ingestion run for a platform and country.
type Job struct {
	Platform workflow.Platform `json:"platform"`
	Country  string            `json:"country"`
}

func (j Job) String() string { return string(j.Platform) + "/" + j.Country }

// Jobs expands platforms x countries into the fixed job list, platform-major.
// Country codes are upper-cased to match query filters.
func Jobs(platforms []workflow.Platform, countries []string) []Job {
	jobs := make([]Job, 0, len(platforms)*len(countries))
	for _, p := range platforms {
		for _, c := range countries {
			if c = strings.ToUpper(strings.TrimSpace(c)); c == "" {
				continue
			}
			jobs = append(jobs, Job{Platform: p, Country: c})
		}
	}
	return jobs
}

// JobResult reports the outcome of one job.
type JobResult struct {
	Job
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Fetched  int           `json:"fetched"`
	Upserted int           `json:"upserted"`
	Duration time.Duration `json:"duration_ns"`
}

// Result is the structured outcome of a trigger.
type Result struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Jobs    []JobResult `json:"jobs"`
}

// TrendLookup classifies search interest. Errors are collapsed to the
// default trend by the runner.
type TrendLookup interface {
	Lookup(ctx context.Context, keyword, country string) (trend.Trend, error)
}

// Upserter persists scored workflows.
type Upserter interface {
	Upsert(ctx context.Context, rec *workflow.Record) (*workflow.Record, error)
}

// Runner executes ingestion jobs.
type Runner struct {
	sources     map[workflow.Platform]source.Source
	jobs        []Job
	trends      TrendLookup
	store       Upserter
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Ingest
}

// Option customizes a Runner.
type Option func(*Runner)

// WithConcurrency runs up to n jobs at once. The default is 1.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics records run outcomes in m.
func WithMetrics(m *metrics.Ingest) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner. A nil trends disables trend lookups and every
// record gets the placeholder trend score.
func NewRunner(sources []source.Source, jobs []Job, trends TrendLookup, store Upserter, opts ...Option) *Runner {
	r := &Runner{
		sources:     make(map[workflow.Platform]source.Source, len(sources)),
		jobs:        jobs,
		trends:      trends,
		store:       store,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, src := range sources {
		r.sources[src.Platform()] = src
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Jobs returns the configured job list.
func (r *Runner) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Trigger runs every configured job and aggregates the outcome. It never
// returns an error or panics; failures are reported in the Result.
func (r *Runner) Trigger(ctx context.Context) Result {
	results := make([]JobResult, len(r.jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, job := range r.jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = r.safeRun(gctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(results)
}

func (r *Runner) safeRun(ctx context.Context, job Job) (res JobResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = JobResult{Job: job, Status: StatusError, Message: fmt.Sprintf("panic: %v", p)}
		}
		res.Duration = time.Since(start)
		status := metrics.StatusSuccess
		if res.Status != StatusSuccess {
			status = metrics.StatusError
			r.logger.Error("ingestion job failed", zap.Stringer("job", job), zap.String("error", res.Message))
		}
		r.metrics.ObserveRun(string(job.Platform), job.Country, status, res.Duration)
	}()

	res, err := r.RunJob(ctx, job)
	if err != nil {
		res.Status = StatusError
		res.Message = err.Error()
	}
	return res
}

// RunJob fetches, scores and upserts the items of one job. A source error
// aborts the job; trend failures do not.
func (r *Runner) RunJob(ctx context.Context, job Job) (JobResult, error) {
	res := JobResult{Job: job}
	log := r.logger.With(zap.Stringer("job", job))

	src, ok := r.sources[job.Platform]
	if !ok {
		return res, fmt.Errorf("no source configured for platform %s", job.Platform)
	}

	items, err := src.Fetch(ctx, job.Country)
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", job, err)
	}
	res.Fetched = len(items)

	// One lookup per canonical name; many items share a name.
	trends := make(map[string]trend.Trend)

	for _, item := range items {
		t, ok := trends[item.Name]
		if !ok {
			t = r.lookupTrend(ctx, log, item.Name, job.Country)
			trends[item.Name] = t
		}

		rec := BuildRecord(item, job.Platform, job.Country, t)
		if _, err := r.store.Upsert(ctx, &rec); err != nil {
			r.metrics.AddUpserts(string(job.Platform), job.Country, res.Upserted)
			return res, fmt.Errorf("store %s: %w", job, err)
		}
		res.Upserted++
	}

	r.metrics.AddUpserts(string(job.Platform), job.Country, res.Upserted)
	log.Info("ingestion job finished", zap.Int("fetched", res.Fetched), zap.Int("upserted", res.Upserted))
	res.Status = StatusSuccess
	return res, nil
}

func (r *Runner) lookupTrend(ctx context.Context, log *zap.Logger, keyword, country string) trend.Trend {
	if r.trends == nil {
		return Placeholder()
	}

	t, err := r.trends.Lookup(ctx, keyword, country)
	if err != nil {
		r.metrics.TrendFallback(country)
		log.Warn("trend lookup failed, using default",
			zap.String("keyword", keyword),
			zap.Bool("unavailable", errors.Is(err, trend.ErrUnavailable)),
			zap.Error(err),
		)
		return trend.OrDefault(t, err)
	}

	log.Debug("trend classified",
		zap.String("keyword", keyword),
		zap.String("direction", string(t.Direction)),
		zap.Float64("avg_interest", t.AvgInterest),
		zap.Float64("growth_pct", t.GrowthPct),
		zap.Int("monthly_search_volume", t.MonthlyVolume),
	)
	return t
}

// Placeholder is the trend used when trend lookups are disabled.
func Placeholder() trend.Trend {
	return trend.Trend{
		Score:     score.PlaceholderTrendScore,
		Direction: workflow.DirectionStable,
		Signal:    "trend lookup disabled",
	}
}

// BuildRecord scores a raw item into a workflow record.
func BuildRecord(item source.RawItem, platform workflow.Platform, country string, t trend.Trend) workflow.Record {
	b := score.WithTrend(item.Views, item.Likes, item.Comments, t.Score)

	rec := workflow.Record{
		Name:     item.Name,
		Platform: platform,
		Country:  country,

		Views:        nonNegative(item.Views),
		Likes:        nonNegative(item.Likes),
		Comments:     nonNegative(item.Comments),
		Replies:      nonNegative(item.Replies),
		Contributors: nonNegative(item.Contributors),

		PopularityScore: b.Popularity,
		EngagementScore: b.Engagement,
		VolumeScore:     b.Volume,
		TrendScore:      b.Trend,

		TrendDirection:   t.Direction,
		TrendAvgInterest: t.AvgInterest,
		Explanation:      score.Explain(item.Views, item.Likes, item.Comments, t.Direction),
	}
	if rec.Name == "" {
		rec.Name = workflow.Normalize(item.Title)
	}
	rec.Derive()
	return rec
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func summarize(results []JobResult) Result {
	var (
		failed   []string
		upserted int
	)
	for _, res := range results {
		upserted += res.Upserted
		if res.Status != StatusSuccess {
			failed = append(failed, fmt.Sprintf("%s: %s", res.Job, res.Message))
		}
	}

	if len(failed) > 0 {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("%d of %d jobs failed: %s", len(failed), len(results), strings.Join(failed, "; ")),
			Jobs:    results,
		}
	}
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("ingested %d workflows from %d jobs", upserted, len(results)),
		Jobs:    results,
	}
}
