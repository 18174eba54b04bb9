package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/flowrank/internal/store"
	"github.com/elonfeng/flowrank/pkg/alert"
	"github.com/elonfeng/flowrank/pkg/ingest"
	"github.com/elonfeng/flowrank/pkg/workflow"
)

// Triggerer runs an ingestion pass.
type Triggerer interface {
	Trigger(ctx context.Context) ingest.Result
}

// Lister reads ranked workflows for alert summaries.
type Lister interface {
	List(ctx context.Context, opts store.ListOpts) ([]workflow.Record, error)
}

// Scheduler runs periodic ingestion and broadcasts a summary after each run.
type Scheduler struct {
	runner   Triggerer
	store    Lister
	alertMgr *alert.Manager
	interval time.Duration
	top      int
	logger   *zap.Logger
}

// New creates a new scheduler.
func New(runner Triggerer, s Lister, alertMgr *alert.Manager, interval time.Duration, top int, logger *zap.Logger) *Scheduler {
	if interval == 0 {
		interval = 6 * time.Hour
	}
	if top == 0 {
		top = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:   runner,
		store:    s,
		alertMgr: alertMgr,
		interval: interval,
		top:      top,
		logger:   logger,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	s.logger.Info("scheduler: initial ingestion")
	s.RunOnce(ctx)

	s.logger.Info("scheduler: running", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce triggers one ingestion pass and alerts on its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) ingest.Result {
	res := s.runner.Trigger(ctx)

	log := s.logger.With(zap.String("status", res.Status))
	if res.Status == ingest.StatusSuccess {
		log.Info("ingestion finished", zap.String("message", res.Message))
	} else {
		log.Error("ingestion finished with failures", zap.String("message", res.Message))
	}

	s.notify(ctx, res)
	return res
}

func (s *Scheduler) notify(ctx context.Context, res ingest.Result) {
	if !s.alertMgr.HasNotifiers() {
		return
	}

	top, err := s.store.List(ctx, store.ListOpts{Limit: s.top})
	if err != nil {
		s.logger.Warn("list top workflows for alert", zap.Error(err))
	}

	if err := s.alertMgr.Broadcast(ctx, alert.Summary(res, top)); err != nil {
		s.logger.Warn("alert broadcast failed", zap.Error(err))
	}
}
