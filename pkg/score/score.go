// Package score computes the Popularity Composite Score (PCS) of a workflow
// from its raw engagement counts and its search-interest trend.
package score

import (
	"math"
	"strings"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

const (
	maxLikeComponent    = 25
	maxCommentComponent = 15

	likeWeight    = 800
	commentWeight = 3000
)

// PlaceholderTrendScore is used when no trend signal was requested.
const PlaceholderTrendScore = 10

// Breakdown is a full PCS result.
type Breakdown struct {
	Popularity int `json:"popularity_score"`
	Engagement int `json:"engagement_score"`
	Volume     int `json:"volume_score"`
	Trend      int `json:"trend_score"`
}

// Engagement scores like and comment ratios, capped at 25 and 15 points.
func Engagement(views, likes, comments int) int {
	if views <= 0 {
		return 0
	}

	likeRatio := float64(likes) / float64(views)
	commentRatio := float64(comments) / float64(views)

	likeComponent := math.Min(likeRatio*likeWeight, maxLikeComponent)
	commentComponent := math.Min(commentRatio*commentWeight, maxCommentComponent)

	e := int(math.Floor(likeComponent + commentComponent))
	if e < 0 {
		return 0
	}
	return e
}

// Volume is a step function of views.
func Volume(views int) int {
	switch {
	case views > 100_000:
		return 40
	case views > 50_000:
		return 30
	case views > 10_000:
		return 20
	default:
		return 10
	}
}

// Score returns the engagement and volume components with the placeholder
// trend score.
func Score(views, likes, comments int) Breakdown {
	return WithTrend(views, likes, comments, PlaceholderTrendScore)
}

// WithTrend combines raw counts with a trend score into a full PCS.
func WithTrend(views, likes, comments, trendScore int) Breakdown {
	b := Breakdown{
		Engagement: Engagement(views, likes, comments),
		Volume:     Volume(views),
		Trend:      trendScore,
	}
	b.Popularity = b.Engagement + b.Volume + b.Trend
	return b
}

const (
	noDataExplanation   = "No engagement data available."
	moderateExplanation = "Moderate popularity based on engagement, reach, and trend signals."
)

// Explain builds a human-readable reason for a workflow's rank.
func Explain(views, likes, comments int, direction workflow.Direction) string {
	if views <= 0 {
		return noDataExplanation
	}

	var reasons []string
	if float64(likes)/float64(views) >= 0.02 {
		reasons = append(reasons, "strong like engagement")
	}
	if float64(comments)/float64(views) >= 0.003 {
		reasons = append(reasons, "active discussion")
	}
	if views >= 50_000 {
		reasons = append(reasons, "high reach")
	}
	if direction == workflow.DirectionUp {
		reasons = append(reasons, "rising search interest")
	}

	if len(reasons) == 0 {
		return moderateExplanation
	}
	return "Ranks high due to " + strings.Join(reasons, ", ") + "."
}
