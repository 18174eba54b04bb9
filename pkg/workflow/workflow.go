package workflow

import "time"

// Platform identifies where a workflow was discovered.
type Platform string

const (
	PlatformYouTube Platform = "YouTube"
	PlatformForum   Platform = "Forum"
)

// AllPlatforms returns the platforms ingestion knows about.
func AllPlatforms() []Platform {
	return []Platform{PlatformYouTube, PlatformForum}
}

// ParsePlatform matches a platform name case-insensitively.
func ParsePlatform(s string) (Platform, bool) {
	switch lower(s) {
	case "youtube", "yt":
		return PlatformYouTube, true
	case "forum", "discourse":
		return PlatformForum, true
	}
	return "", false
}

// Direction is the classified search-interest trajectory.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionStable Direction = "stable"
	DirectionDown   Direction = "down"
)

// Key is the identity of a stored workflow.
type Key struct {
	Name     string
	Platform Platform
	Country  string
}

func (k Key) String() string {
	return k.Name + "|" + string(k.Platform) + "|" + k.Country
}

// Record is a scored workflow. Popularity always equals
// Engagement + Volume + Trend.
type Record struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Platform Platform `json:"platform"`
	Country  string   `json:"country"`

	Views        int `json:"views"`
	Likes        int `json:"likes"`
	Comments     int `json:"comments"`
	Replies      int `json:"replies"`
	Contributors int `json:"contributors"`

	LikeToViewRatio    float64 `json:"like_to_view_ratio"`
	CommentToViewRatio float64 `json:"comment_to_view_ratio"`

	PopularityScore int `json:"popularity_score"`
	EngagementScore int `json:"engagement_score"`
	VolumeScore     int `json:"volume_score"`
	TrendScore      int `json:"trend_score"`

	TrendDirection   Direction `json:"trend_direction"`
	TrendAvgInterest float64   `json:"trend_avg_interest"`

	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key returns the identity of r.
func (r *Record) Key() Key {
	return Key{Name: r.Name, Platform: r.Platform, Country: r.Country}
}

// Ratio returns part/views, or 0 when views is not positive.
func Ratio(part, views int) float64 {
	if views <= 0 {
		return 0
	}
	return float64(part) / float64(views)
}

// Derive recomputes the ratio fields from the raw counts.
func (r *Record) Derive() {
	r.LikeToViewRatio = Ratio(r.Likes, r.Views)
	r.CommentToViewRatio = Ratio(r.Comments, r.Views)
}

// Merge overwrites every mutable field of existing with the values from
// incoming. Identity and CreatedAt are left untouched.
func Merge(existing, incoming Record) Record {
	merged := existing

	merged.Views = incoming.Views
	merged.Likes = incoming.Likes
	merged.Comments = incoming.Comments
	merged.Replies = incoming.Replies
	merged.Contributors = incoming.Contributors

	merged.PopularityScore = incoming.PopularityScore
	merged.EngagementScore = incoming.EngagementScore
	merged.VolumeScore = incoming.VolumeScore
	merged.TrendScore = incoming.TrendScore

	merged.TrendDirection = incoming.TrendDirection
	merged.TrendAvgInterest = incoming.TrendAvgInterest
	merged.Explanation = incoming.Explanation

	merged.Derive()
	return merged
}
