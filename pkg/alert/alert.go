// Package alert delivers post-ingestion summaries to chat and webhook
// destinations.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/flowrank/pkg/ingest"
	"github.com/elonfeng/flowrank/pkg/workflow"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Status    string            `json:"status"`
	Jobs      int               `json:"jobs"`
	Failed    int               `json:"failed"`
	Workflows []workflow.Record `json:"workflows"`
	SentAt    time.Time         `json:"sent_at"`
}

// Succeeded reports whether every job in the run succeeded.
func (n *Notification) Succeeded() bool { return n.Status == ingest.StatusSuccess }

// Summary builds a notification for a finished trigger and its current top
// workflows.
func Summary(res ingest.Result, top []workflow.Record) *Notification {
	n := &Notification{
		Title:     "flowrank ingestion succeeded",
		Body:      res.Message,
		Status:    res.Status,
		Jobs:      len(res.Jobs),
		Workflows: top,
		SentAt:    time.Now().UTC(),
	}
	for _, job := range res.Jobs {
		if job.Status != ingest.StatusSuccess {
			n.Failed++
		}
	}
	if !n.Succeeded() {
		n.Title = "flowrank ingestion failed"
	}
	return n
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// line renders one ranked workflow for chat messages.
func line(i int, rec workflow.Record) string {
	return fmt.Sprintf("%d. %s [%s/%s] score %d, trend %s",
		i+1, rec.Name, rec.Platform, rec.Country, rec.PopularityScore, rec.TrendDirection)
}
