package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/flowrank/internal/config"
	"github.com/elonfeng/flowrank/internal/logging"
	"github.com/elonfeng/flowrank/internal/metrics"
	"github.com/elonfeng/flowrank/internal/scheduler"
	"github.com/elonfeng/flowrank/internal/store"
	"github.com/elonfeng/flowrank/pkg/alert"
	"github.com/elonfeng/flowrank/pkg/ingest"
	"github.com/elonfeng/flowrank/pkg/server"
	"github.com/elonfeng/flowrank/pkg/source"
	"github.com/elonfeng/flowrank/pkg/trend"
	"github.com/elonfeng/flowrank/pkg/workflow"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *store.SQLiteStore
	registry *prometheus.Registry
	closers  []func() error
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: registry,
		closers:  []func() error{db.Close},
	}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) buildSources() []source.Source {
	var (
		cfg     = a.cfg
		timeout = cfg.Ingest.ParseTimeout()
		namer   = workflow.NewNamer(nil)
		sources []source.Source
	)

	if cfg.Sources.YouTube.Enabled {
		sources = append(sources, source.NewYouTube(source.YouTubeOptions{
			APIKey:     cfg.Sources.YouTube.APIKey,
			Queries:    cfg.Sources.YouTube.Queries,
			Channels:   cfg.Sources.YouTube.Channels,
			MaxResults: cfg.Sources.YouTube.MaxResults,
			Timeout:    timeout,
			Namer:      namer,
			Logger:     a.logger.Named("youtube"),
		}))
	}
	if cfg.Sources.Forum.Enabled {
		sources = append(sources, source.NewForum(source.ForumOptions{
			BaseURL: cfg.Sources.Forum.BaseURL,
			Limit:   cfg.Sources.Forum.Limit,
			Timeout: timeout,
			Namer:   namer,
		}))
	}

	return sources
}

// buildTrendCache prefers redis when configured and reachable.
func (a *app) buildTrendCache() trend.Cache {
	addr := a.cfg.Trend.RedisAddr
	if addr == "" {
		return trend.NewMemoryCache()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis unavailable, using in-process trend cache", zap.String("addr", addr), zap.Error(err))
		_ = client.Close()
		return trend.NewMemoryCache()
	}

	a.closers = append(a.closers, client.Close)
	a.logger.Info("trend cache: redis", zap.String("addr", addr))
	return trend.NewRedisCache(client, "")
}

func (a *app) buildClassifier() ingest.TrendLookup {
	if !a.cfg.Trend.Enabled {
		return nil
	}

	timeout := a.cfg.Ingest.ParseTimeout()
	fetcher := trend.NewGoogleTrends(trend.GoogleTrendsOptions{
		Language:  a.cfg.Trend.Language,
		TZOffset:  a.cfg.Trend.TZOffset,
		Timeframe: a.cfg.Trend.Timeframe,
		Timeout:   timeout,
	})
	return trend.NewClassifier(fetcher,
		trend.WithCache(a.buildTrendCache(), a.cfg.Trend.ParseCacheTTL()),
		trend.WithTimeout(timeout),
		trend.WithLogger(a.logger.Named("trend")),
	)
}

func (a *app) buildRunner() *ingest.Runner {
	return ingest.NewRunner(
		a.buildSources(),
		ingest.Jobs(a.cfg.Platforms(), a.cfg.Ingest.Countries),
		a.buildClassifier(),
		a.db,
		ingest.WithConcurrency(a.cfg.Ingest.Concurrency),
		ingest.WithLogger(a.logger.Named("ingest")),
		ingest.WithMetrics(metrics.NewIngest(a.registry)),
	)
}

func (a *app) buildAlertManager() *alert.Manager {
	var (
		cfg       = a.cfg
		notifiers []alert.Notifier
	)

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func (a *app) buildScheduler(runner scheduler.Triggerer) *scheduler.Scheduler {
	return scheduler.New(
		runner,
		a.db,
		a.buildAlertManager(),
		a.cfg.Schedule.ParseInterval(),
		a.cfg.Alerts.Top,
		a.logger.Named("scheduler"),
	)
}

func runIngest(ctx context.Context, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	res := a.buildScheduler(a.buildRunner()).RunOnce(ctx)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PLATFORM\tCOUNTRY\tSTATUS\tFETCHED\tUPSERTED\tDURATION")
		for _, job := range res.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				job.Platform, job.Country, job.Status, job.Fetched, job.Upserted,
				job.Duration.Round(time.Millisecond))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\n%s\n", res.Message)
	}

	if res.Status != ingest.StatusSuccess {
		return errors.New("ingestion finished with failures")
	}
	return nil
}

func runWorkflows(ctx context.Context, platform, country string, limit int, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	opts := store.ListOpts{Country: strings.ToUpper(country), Limit: limit}
	if platform != "" {
		p, ok := workflow.ParsePlatform(platform)
		if !ok {
			return fmt.Errorf("unknown platform %q", platform)
		}
		opts.Platform = p
	}

	records, err := a.db.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("list workflows: %w", err)
	}

	if jsonOutput {
		if records == nil {
			records = []workflow.Record{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("no workflows found (try ingesting first: flowrank ingest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tENG\tVOL\tTREND\tDIR\tPLATFORM\tCOUNTRY\tWORKFLOW")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.PopularityScore, r.EngagementScore, r.VolumeScore, r.TrendScore,
			r.TrendDirection, r.Platform, r.Country, r.Name)
	}
	return w.Flush()
}

func runServe(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	var runner server.Triggerer
	if err := a.cfg.Validate(); err != nil {
		a.logger.Warn("ingestion endpoint disabled", zap.Error(err))
	} else {
		runner = a.buildRunner()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(a.db, runner, port,
		server.WithLogger(a.logger.Named("server")),
		server.WithGatherer(a.registry),
	)
	return srv.ListenAndServe(ctx)
}

func runDaemon(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := a.buildRunner()
	sched := a.buildScheduler(runner)
	srv := server.New(a.db, runner, port,
		server.WithLogger(a.logger.Named("server")),
		server.WithGatherer(a.registry),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	err = g.Wait()
	a.logger.Info("shutting down")
	return err
}
