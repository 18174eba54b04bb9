package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/flowrank/pkg/ingest"
	"github.com/elonfeng/flowrank/pkg/workflow"
)

func sampleResult(status string) ingest.Result {
	return ingest.Result{
		Status:  status,
		Message: "ingested 2 workflows from 2 jobs",
		Jobs: []ingest.JobResult{
			{Job: ingest.Job{Platform: workflow.PlatformYouTube, Country: "US"}, Status: ingest.StatusSuccess},
			{Job: ingest.Job{Platform: workflow.PlatformForum, Country: "US"}, Status: status},
		},
	}
}

func sampleTop() []workflow.Record {
	return []workflow.Record{
		{Name: "Gmail → Slack Automation", Platform: workflow.PlatformYouTube, Country: "US", PopularityScore: 72, TrendDirection: workflow.DirectionUp},
		{Name: "Notion Automation", Platform: workflow.PlatformForum, Country: "US", PopularityScore: 31, TrendDirection: workflow.DirectionStable},
	}
}

// capture records the last request body a test server received.
type capture struct {
	body   []byte
	header http.Header
}

func newServer(t *testing.T, status int, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.body = body
		c.header = r.Header.Clone()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSummary(t *testing.T) {
	n := Summary(sampleResult(ingest.StatusSuccess), sampleTop())
	assert.True(t, n.Succeeded())
	assert.Equal(t, "flowrank ingestion succeeded", n.Title)
	assert.Equal(t, 2, n.Jobs)
	assert.Equal(t, 0, n.Failed)
	assert.Len(t, n.Workflows, 2)

	n = Summary(sampleResult(ingest.StatusError), nil)
	assert.False(t, n.Succeeded())
	assert.Equal(t, "flowrank ingestion failed", n.Title)
	assert.Equal(t, 1, n.Failed)
}

func TestSlackSend(t *testing.T) {
	var c capture
	srv := newServer(t, http.StatusOK, &c)

	err := NewSlack(srv.URL).Send(context.Background(), Summary(sampleResult(ingest.StatusSuccess), sampleTop()))
	require.NoError(t, err)

	var payload struct {
		Blocks []map[string]any `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(c.body, &payload))
	require.Len(t, payload.Blocks, 3)
	assert.Equal(t, "header", payload.Blocks[0]["type"])
	assert.Contains(t, string(c.body), "1. Gmail → Slack Automation [YouTube/US] score 72, trend up")
	assert.Contains(t, string(c.body), "2. Notion Automation [Forum/US] score 31, trend stable")
}

func TestSlackSendStatusError(t *testing.T) {
	var c capture
	srv := newServer(t, http.StatusForbidden, &c)

	err := NewSlack(srv.URL).Send(context.Background(), Summary(sampleResult(ingest.StatusSuccess), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack webhook status 403")
}

func TestDiscordSend(t *testing.T) {
	var c capture
	srv := newServer(t, http.StatusNoContent, &c)

	err := NewDiscord(srv.URL).Send(context.Background(), Summary(sampleResult(ingest.StatusError), sampleTop()))
	require.NoError(t, err)

	var payload struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Color       int    `json:"color"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(c.body, &payload))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "flowrank ingestion failed", payload.Embeds[0].Title)
	assert.Equal(t, colorFailure, payload.Embeds[0].Color)
	assert.Contains(t, payload.Embeds[0].Description, "**Failed:** 1")
}

func TestWebhookSignsBody(t *testing.T) {
	var c capture
	srv := newServer(t, http.StatusAccepted, &c)

	err := NewWebhook(srv.URL, "s3cret").Send(context.Background(), Summary(sampleResult(ingest.StatusSuccess), sampleTop()))
	require.NoError(t, err)

	sig := c.header.Get(SignatureHeader)
	require.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, Verify("s3cret", c.body, sig))
	assert.False(t, Verify("other", c.body, sig))

	var n Notification
	require.NoError(t, json.Unmarshal(c.body, &n))
	assert.Equal(t, ingest.StatusSuccess, n.Status)
	assert.Len(t, n.Workflows, 2)
}

func TestWebhookWithoutSecret(t *testing.T) {
	var c capture
	srv := newServer(t, http.StatusOK, &c)

	require.NoError(t, NewWebhook(srv.URL, "").Send(context.Background(), Summary(sampleResult(ingest.StatusSuccess), nil)))
	assert.Empty(t, c.header.Get(SignatureHeader))
}

type stubNotifier struct {
	name string
	err  error
	sent int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(context.Context, *Notification) error {
	s.sent++
	return s.err
}

func TestManagerBroadcast(t *testing.T) {
	ok := &stubNotifier{name: "ok"}
	bad := &stubNotifier{name: "bad", err: errors.New("unreachable")}
	m := NewManager([]Notifier{bad, ok})

	require.True(t, m.HasNotifiers())
	err := m.Broadcast(context.Background(), &Notification{})
	require.Error(t, err)
	assert.Equal(t, "bad: unreachable", err.Error())
	assert.Equal(t, 1, ok.sent)
	assert.Equal(t, 1, bad.sent)
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.HasNotifiers())
	assert.NoError(t, m.Broadcast(context.Background(), &Notification{}))
	assert.False(t, NewManager(nil).HasNotifiers())
}
