package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

const (
	forumBaseURL = "https://community.n8n.io"

	// maxForumPages bounds pagination; Discourse serves about 30 topics per page.
	maxForumPages = 10
)

// ForumOptions configures the forum adapter.
type ForumOptions struct {
	BaseURL string
	Limit   int
	Timeout time.Duration
	Namer   *workflow.Namer
}

// Forum reads the latest topics of a Discourse community forum.
type Forum struct {
	client  *http.Client
	baseURL string
	limit   int
	namer   *workflow.Namer
}

// NewForum creates a forum adapter.
func NewForum(opts ForumOptions) *Forum {
	if opts.BaseURL == "" {
		opts.BaseURL = forumBaseURL
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Namer == nil {
		opts.Namer = workflow.NewNamer(nil)
	}
	return &Forum{
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limit:   opts.Limit,
		namer:   opts.Namer,
	}
}

func (f *Forum) Platform() workflow.Platform { return workflow.PlatformForum }

// Fetch returns one item per latest topic. The forum is not regional, so
// country only labels the results.
func (f *Forum) Fetch(ctx context.Context, country string) ([]RawItem, error) {
	topics, err := f.LatestTopics(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]RawItem, 0, len(topics))
	for _, t := range topics {
		replies := int(t.PostsCount) - 1
		if replies < 0 {
			replies = 0
		}
		items = append(items, RawItem{
			ExternalID:   fmt.Sprintf("%d", t.ID),
			Title:        t.Title,
			Name:         f.namer.Name(t.Title),
			Views:        int(t.Views),
			Likes:        int(t.LikeCount),
			Comments:     replies,
			Replies:      replies,
			Contributors: len(t.Posters),
		})
	}
	return items, nil
}

// LatestTopics fetches up to the configured limit of latest topics,
// following /latest.json pages until the limit is met or the forum reports
// no more topics.
func (f *Forum) LatestTopics(ctx context.Context) ([]Topic, error) {
	var (
		topics []Topic
		seen   = make(map[int64]bool)
	)
	for page := 0; page < maxForumPages && len(topics) < f.limit; page++ {
		result, err := f.latestPage(ctx, page)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, t := range result.TopicList.Topics {
			// Topics bumped between requests can show up on two pages.
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			topics = append(topics, t)
			added++
		}
		if added == 0 || result.TopicList.MoreTopicsURL == "" {
			break
		}
	}

	if len(topics) > f.limit {
		topics = topics[:f.limit]
	}
	return topics, nil
}

func (f *Forum) latestPage(ctx context.Context, page int) (*forumLatest, error) {
	reqURL := f.baseURL + "/latest.json"
	if page > 0 {
		reqURL += "?page=" + strconv.Itoa(page)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create forum request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch forum latest page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forum latest page %d status %d", page, resp.StatusCode)
	}

	var result forumLatest
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode forum latest page %d: %w", page, err)
	}
	return &result, nil
}

type forumLatest struct {
	TopicList struct {
		Topics        []Topic `json:"topics"`
		MoreTopicsURL string  `json:"more_topics_url"`
	} `json:"topic_list"`
}

// Topic is one Discourse topic summary.
type Topic struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PostsCount count  `json:"posts_count"`
	LikeCount  count  `json:"like_count"`
	Views      count  `json:"views"`
	Posters    []struct {
		UserID int64 `json:"user_id"`
	} `json:"posters"`
}
