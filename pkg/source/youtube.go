package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

const (
	youtubeAPIURL  = "https://www.googleapis.com/youtube/v3"
	youtubeFeedURL = "https://www.youtube.com/feeds/videos.xml"

	statsBatchSize = 50
)

// DefaultYouTubeQueries are the search queries used when none are configured.
var DefaultYouTubeQueries = []string{
	"n8n whatsapp automation",
	"n8n whatsapp ai agent",
	"n8n slack automation",
	"n8n slack ai bot",
	"n8n google sheets automation",
	"n8n gmail automation",
	"n8n gmail ai agent",
	"n8n notion automation",
	"n8n webhook automation",
	"n8n api automation",
	"n8n ai automation",
}

// YouTubeOptions configures the YouTube adapter.
type YouTubeOptions struct {
	APIKey     string
	Queries    []string
	Channels   []string // channel IDs whose upload feeds are also scanned
	MaxResults int      // per search query
	Timeout    time.Duration
	BaseURL    string
	FeedURL    string
	Namer      *workflow.Namer
	Logger     *zap.Logger
}

// YouTube discovers n8n workflow videos via the YouTube Data API.
type YouTube struct {
	client     *http.Client
	parser     *gofeed.Parser
	apiKey     string
	queries    []string
	channels   []string
	maxResults int
	baseURL    string
	feedURL    string
	namer      *workflow.Namer
	logger     *zap.Logger
}

// NewYouTube creates a YouTube adapter.
func NewYouTube(opts YouTubeOptions) *YouTube {
	if len(opts.Queries) == 0 {
		opts.Queries = DefaultYouTubeQueries
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = youtubeAPIURL
	}
	if opts.FeedURL == "" {
		opts.FeedURL = youtubeFeedURL
	}
	if opts.Namer == nil {
		opts.Namer = workflow.NewNamer(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &YouTube{
		client:     &http.Client{Timeout: opts.Timeout},
		parser:     gofeed.NewParser(),
		apiKey:     opts.APIKey,
		queries:    opts.Queries,
		channels:   opts.Channels,
		maxResults: opts.MaxResults,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		feedURL:    opts.FeedURL,
		namer:      opts.Namer,
		logger:     opts.Logger,
	}
}

func (y *YouTube) Platform() workflow.Platform { return workflow.PlatformYouTube }

// Fetch searches every query for country, looks up statistics for all
// discovered videos and returns one item per canonical workflow name. The
// first video seen for a name wins; later ones are skipped. Search and
// statistics failures abort the run.
func (y *YouTube) Fetch(ctx context.Context, country string) ([]RawItem, error) {
	if y.apiKey == "" {
		return nil, fmt.Errorf("youtube: API key required (set YOUTUBE_API_KEY)")
	}

	var ids []string
	titles := make(map[string]string)
	add := func(id, title string) {
		if id == "" {
			return
		}
		if _, ok := titles[id]; ok {
			return
		}
		titles[id] = title
		ids = append(ids, id)
	}

	for _, query := range y.queries {
		results, err := y.SearchVideos(ctx, query, country)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			add(r.ID.VideoID, r.Snippet.Title)
		}
	}

	// Channel feeds only add candidates; a broken feed is skipped.
	for _, channel := range y.channels {
		videos, err := y.ChannelVideos(ctx, channel)
		if err != nil {
			y.logger.Warn("skipping youtube channel feed", zap.String("channel", channel), zap.Error(err))
			continue
		}
		for _, v := range videos {
			add(v.ID, v.Title)
		}
	}

	stats, err := y.VideoStatistics(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Video, len(stats))
	for _, v := range stats {
		byID[v.ID] = v
	}

	seen := make(map[string]bool)
	var items []RawItem
	for _, id := range ids {
		video, ok := byID[id]
		if !ok {
			continue
		}

		title := video.Snippet.Title
		if title == "" {
			title = titles[id]
		}
		name := y.namer.Name(title)
		if seen[name] {
			continue
		}
		seen[name] = true

		items = append(items, RawItem{
			ExternalID: id,
			Title:      title,
			Name:       name,
			Views:      int(video.Statistics.ViewCount),
			Likes:      int(video.Statistics.LikeCount),
			Comments:   int(video.Statistics.CommentCount),
		})
	}

	return items, nil
}

// SearchVideos runs one search query restricted to videos in country.
func (y *YouTube) SearchVideos(ctx context.Context, query, country string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(y.maxResults))
	params.Set("regionCode", country)
	params.Set("key", y.apiKey)

	var result ytSearchResponse
	if err := y.getJSON(ctx, "/search", params, &result); err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", query, err)
	}
	return result.Items, nil
}

// VideoStatistics fetches statistics and snippets for ids in batches of 50.
func (y *YouTube) VideoStatistics(ctx context.Context, ids []string) ([]Video, error) {
	var videos []Video
	for start := 0; start < len(ids); start += statsBatchSize {
		end := start + statsBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		params := url.Values{}
		params.Set("part", "statistics,snippet")
		params.Set("id", strings.Join(ids[start:end], ","))
		params.Set("key", y.apiKey)

		var result ytVideosResponse
		if err := y.getJSON(ctx, "/videos", params, &result); err != nil {
			return nil, fmt.Errorf("youtube video statistics: %w", err)
		}
		videos = append(videos, result.Items...)
	}
	return videos, nil
}

// FeedVideo is an upload listed in a channel feed.
type FeedVideo struct {
	ID    string
	Title string
}

// ChannelVideos lists the recent uploads of a channel from its public feed.
func (y *YouTube) ChannelVideos(ctx context.Context, channelID string) ([]FeedVideo, error) {
	reqURL := y.feedURL + "?" + url.Values{"channel_id": {channelID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create youtube feed request %s: %w", channelID, err)
	}
	req.Header.Set("User-Agent", "flowrank/1.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch youtube feed %s: %w", channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube feed %s status %d", channelID, resp.StatusCode)
	}

	feed, err := y.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse youtube feed %s: %w", channelID, err)
	}

	var videos []FeedVideo
	for _, entry := range feed.Items {
		if id := feedVideoID(entry); id != "" {
			videos = append(videos, FeedVideo{ID: id, Title: entry.Title})
		}
	}
	return videos, nil
}

func feedVideoID(entry *gofeed.Item) string {
	if yt, ok := entry.Extensions["yt"]; ok {
		if ext := yt["videoId"]; len(ext) > 0 && ext[0].Value != "" {
			return ext[0].Value
		}
	}
	return strings.TrimPrefix(entry.GUID, "yt:video:")
}

func (y *YouTube) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type ytSearchResponse struct {
	Items []SearchResult `json:"items"`
}

// SearchResult is one video hit of a search query.
type SearchResult struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title string `json:"title"`
	} `json:"snippet"`
}

type ytVideosResponse struct {
	Items []Video `json:"items"`
}

// Video is a video with its statistics. Counts that fail to parse are 0.
type Video struct {
	ID      string `json:"id"`
	Snippet struct {
		Title string `json:"title"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    count `json:"viewCount"`
		LikeCount    count `json:"likeCount"`
		CommentCount count `json:"commentCount"`
	} `json:"statistics"`
}
