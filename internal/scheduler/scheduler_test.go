package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/elonfeng/flowrank/internal/store"
	"github.com/elonfeng/flowrank/pkg/alert"
	"github.com/elonfeng/flowrank/pkg/ingest"
	"github.com/elonfeng/flowrank/pkg/workflow"
)

type countingRunner struct {
	calls  atomic.Int32
	result ingest.Result
}

func (c *countingRunner) Trigger(context.Context) ingest.Result {
	c.calls.Add(1)
	return c.result
}

type fakeLister struct {
	records []workflow.Record
	opts    store.ListOpts
}

func (f *fakeLister) List(_ context.Context, opts store.ListOpts) ([]workflow.Record, error) {
	f.opts = opts
	if opts.Limit < len(f.records) {
		return f.records[:opts.Limit], nil
	}
	return f.records, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*alert.Notification
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Send(_ context.Context, n *alert.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func TestRunOnceBroadcastsSummary(t *testing.T) {
	runner := &countingRunner{result: ingest.Result{Status: ingest.StatusError, Message: "1 of 4 jobs failed"}}
	lister := &fakeLister{records: []workflow.Record{{Name: "A Automation"}, {Name: "B Automation"}, {Name: "C Automation"}}}
	notifier := &recordingNotifier{}

	s := New(runner, lister, alert.NewManager([]alert.Notifier{notifier}), time.Hour, 2, zaptest.NewLogger(t))
	res := s.RunOnce(context.Background())

	assert.Equal(t, ingest.StatusError, res.Status)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, 2, lister.opts.Limit)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "flowrank ingestion failed", notifier.sent[0].Title)
	assert.Len(t, notifier.sent[0].Workflows, 2)
}

func TestRunOnceWithoutNotifiers(t *testing.T) {
	runner := &countingRunner{result: ingest.Result{Status: ingest.StatusSuccess}}
	lister := &fakeLister{}

	s := New(runner, lister, alert.NewManager(nil), 0, 0, nil)
	s.RunOnce(context.Background())

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, 0, lister.opts.Limit)
}

func TestRunStopsOnCancel(t *testing.T) {
	runner := &countingRunner{result: ingest.Result{Status: ingest.StatusSuccess}}
	s := New(runner, &fakeLister{}, nil, 10*time.Millisecond, 5, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
