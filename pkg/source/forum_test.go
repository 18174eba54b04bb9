package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

const latestJSON = `{"topic_list":{"topics":[
	{"id":1,"title":"Slack trigger not firing","posts_count":5,"like_count":3,"views":420,
	 "posters":[{"user_id":1},{"user_id":2},{"user_id":3}]},
	{"id":2,"title":"Slack trigger not firing","posts_count":0,"views":"bad"},
	{"id":3,"title":"Telegram bot with Notion","posts_count":2,"like_count":1,"views":50,"posters":[]}
]}}`

func TestForumFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest.json", r.URL.Path)
		_, _ = w.Write([]byte(latestJSON))
	}))
	defer srv.Close()

	f := NewForum(ForumOptions{BaseURL: srv.URL + "/"})
	items, err := f.Fetch(context.Background(), "US")
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, RawItem{
		ExternalID:   "1",
		Title:        "Slack trigger not firing",
		Name:         "Slack Automation",
		Views:        420,
		Likes:        3,
		Comments:     4,
		Replies:      4,
		Contributors: 3,
	}, items[0])

	// Same title again: the forum adapter does not dedup.
	assert.Equal(t, "Slack Automation", items[1].Name)
	assert.Equal(t, 0, items[1].Replies)
	assert.Equal(t, 0, items[1].Views)

	assert.Equal(t, "Notion → Telegram Automation", items[2].Name)
	assert.Equal(t, 1, items[2].Replies)
	assert.Equal(t, 0, items[2].Contributors)
}

func TestForumFetchLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(latestJSON))
	}))
	defer srv.Close()

	items, err := NewForum(ForumOptions{BaseURL: srv.URL, Limit: 2}).Fetch(context.Background(), "IN")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

// pagedForum serves total topics, perPage at a time, the way Discourse does.
func pagedForum(t *testing.T, total, perPage int, pages *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := 0
		if p := r.URL.Query().Get("page"); p != "" {
			var err error
			page, err = strconv.Atoi(p)
			if !assert.NoError(t, err) {
				return
			}
		}
		*pages = append(*pages, r.URL.Query().Get("page"))

		var body forumLatest
		for id := page*perPage + 1; id <= min((page+1)*perPage, total); id++ {
			body.TopicList.Topics = append(body.TopicList.Topics, Topic{ID: int64(id), Title: "Gmail flow", PostsCount: 2})
		}
		if (page+1)*perPage < total {
			body.TopicList.MoreTopicsURL = fmt.Sprintf("/latest?page=%d", page+1)
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestForumFetchFollowsPages(t *testing.T) {
	var pages []string
	srv := pagedForum(t, 100, 30, &pages)

	items, err := NewForum(ForumOptions{BaseURL: srv.URL, Limit: 50}).Fetch(context.Background(), "US")
	require.NoError(t, err)
	require.Len(t, items, 50)
	assert.Equal(t, []string{"", "1"}, pages)
	assert.Equal(t, "1", items[0].ExternalID)
	assert.Equal(t, "50", items[49].ExternalID)
}

func TestForumFetchStopsWhenExhausted(t *testing.T) {
	var pages []string
	srv := pagedForum(t, 40, 30, &pages)

	items, err := NewForum(ForumOptions{BaseURL: srv.URL, Limit: 50}).Fetch(context.Background(), "US")
	require.NoError(t, err)
	assert.Len(t, items, 40)
	assert.Equal(t, []string{"", "1"}, pages)
}

func TestForumFetchSkipsRepeatedTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"topic_list":{"more_topics_url":"/latest?page=1","topics":[{"id":7,"title":"Slack"}]}}`))
	}))
	defer srv.Close()

	items, err := NewForum(ForumOptions{BaseURL: srv.URL, Limit: 50}).Fetch(context.Background(), "US")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestForumFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewForum(ForumOptions{BaseURL: srv.URL}).Fetch(context.Background(), "US")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestForumPlatform(t *testing.T) {
	assert.Equal(t, workflow.PlatformForum, NewForum(ForumOptions{}).Platform())
}
