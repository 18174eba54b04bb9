package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(10, 0))
	assert.Equal(t, 0.0, Ratio(10, -5))
	assert.InDelta(t, 0.25, Ratio(25, 100), 1e-9)
}

func TestMergeKeepsIdentityAndCreatedAt(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	existing := Record{
		ID:              7,
		Name:            "Slack Automation",
		Platform:        PlatformYouTube,
		Country:         "US",
		Views:           100,
		Likes:           1,
		PopularityScore: 21,
		TrendDirection:  DirectionDown,
		Explanation:     "old",
		CreatedAt:       created,
	}
	incoming := Record{
		ID:               99,
		Name:             "Slack Automation",
		Platform:         PlatformYouTube,
		Country:          "US",
		Views:            1000,
		Likes:            50,
		Comments:         5,
		Replies:          5,
		Contributors:     3,
		PopularityScore:  60,
		EngagementScore:  40,
		VolumeScore:      10,
		TrendScore:       10,
		TrendDirection:   DirectionStable,
		TrendAvgInterest: 42.5,
		Explanation:      "new",
		CreatedAt:        created.Add(time.Hour),
	}

	merged := Merge(existing, incoming)

	assert.Equal(t, int64(7), merged.ID)
	assert.Equal(t, created, merged.CreatedAt)
	assert.Equal(t, existing.Key(), merged.Key())
	assert.Equal(t, 1000, merged.Views)
	assert.Equal(t, 50, merged.Likes)
	assert.Equal(t, 5, merged.Comments)
	assert.Equal(t, 5, merged.Replies)
	assert.Equal(t, 3, merged.Contributors)
	assert.Equal(t, 60, merged.PopularityScore)
	assert.Equal(t, 40, merged.EngagementScore)
	assert.Equal(t, 10, merged.VolumeScore)
	assert.Equal(t, 10, merged.TrendScore)
	assert.Equal(t, DirectionStable, merged.TrendDirection)
	assert.Equal(t, 42.5, merged.TrendAvgInterest)
	assert.Equal(t, "new", merged.Explanation)
	assert.InDelta(t, 0.05, merged.LikeToViewRatio, 1e-9)
	assert.InDelta(t, 0.005, merged.CommentToViewRatio, 1e-9)
}
