package store

import (
	"database/sql"
	"time"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

const selectByKey = `SELECT * FROM workflows WHERE name = ? AND platform = ? AND country = ?`

const insertWorkflow = `
	INSERT INTO workflows (
		name, platform, country, views, likes, comments, replies, contributors,
		like_to_view_ratio, comment_to_view_ratio,
		popularity_score, engagement_score, volume_score, trend_score,
		trend_direction, trend_avg_interest, explanation, created_at, updated_at
	) VALUES (
		:name, :platform, :country, :views, :likes, :comments, :replies, :contributors,
		:like_to_view_ratio, :comment_to_view_ratio,
		:popularity_score, :engagement_score, :volume_score, :trend_score,
		:trend_direction, :trend_avg_interest, :explanation, :created_at, :updated_at
	)`

const updateWorkflow = `
	UPDATE workflows SET
		views = :views,
		likes = :likes,
		comments = :comments,
		replies = :replies,
		contributors = :contributors,
		like_to_view_ratio = :like_to_view_ratio,
		comment_to_view_ratio = :comment_to_view_ratio,
		popularity_score = :popularity_score,
		engagement_score = :engagement_score,
		volume_score = :volume_score,
		trend_score = :trend_score,
		trend_direction = :trend_direction,
		trend_avg_interest = :trend_avg_interest,
		explanation = :explanation,
		updated_at = :updated_at
	WHERE id = :id`

// workflowRow mirrors the workflows table. Most columns are nullable, so
// they are normalized to zero values in toRecord.
type workflowRow struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Platform string `db:"platform"`
	Country  string `db:"country"`

	Views        sql.NullInt64 `db:"views"`
	Likes        sql.NullInt64 `db:"likes"`
	Comments     sql.NullInt64 `db:"comments"`
	Replies      sql.NullInt64 `db:"replies"`
	Contributors sql.NullInt64 `db:"contributors"`

	LikeToViewRatio    sql.NullFloat64 `db:"like_to_view_ratio"`
	CommentToViewRatio sql.NullFloat64 `db:"comment_to_view_ratio"`

	PopularityScore sql.NullInt64 `db:"popularity_score"`
	EngagementScore sql.NullInt64 `db:"engagement_score"`
	VolumeScore     sql.NullInt64 `db:"volume_score"`
	TrendScore      sql.NullInt64 `db:"trend_score"`

	TrendDirection   sql.NullString  `db:"trend_direction"`
	TrendAvgInterest sql.NullFloat64 `db:"trend_avg_interest"`

	Explanation sql.NullString `db:"explanation"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *workflowRow) toRecord() workflow.Record {
	return workflow.Record{
		ID:       r.ID,
		Name:     r.Name,
		Platform: workflow.Platform(r.Platform),
		Country:  r.Country,

		Views:        int(r.Views.Int64),
		Likes:        int(r.Likes.Int64),
		Comments:     int(r.Comments.Int64),
		Replies:      int(r.Replies.Int64),
		Contributors: int(r.Contributors.Int64),

		LikeToViewRatio:    r.LikeToViewRatio.Float64,
		CommentToViewRatio: r.CommentToViewRatio.Float64,

		PopularityScore: int(r.PopularityScore.Int64),
		EngagementScore: int(r.EngagementScore.Int64),
		VolumeScore:     int(r.VolumeScore.Int64),
		TrendScore:      int(r.TrendScore.Int64),

		TrendDirection:   workflow.Direction(r.TrendDirection.String),
		TrendAvgInterest: r.TrendAvgInterest.Float64,

		Explanation: r.Explanation.String,
		CreatedAt:   r.CreatedAt,
	}
}

// fromRecord builds a row for writing. Replies and contributors are only
// stored for forum workflows.
func fromRecord(rec *workflow.Record, updatedAt time.Time) workflowRow {
	forum := rec.Platform == workflow.PlatformForum
	return workflowRow{
		ID:       rec.ID,
		Name:     rec.Name,
		Platform: string(rec.Platform),
		Country:  rec.Country,

		Views:        sql.NullInt64{Int64: int64(rec.Views), Valid: true},
		Likes:        sql.NullInt64{Int64: int64(rec.Likes), Valid: true},
		Comments:     sql.NullInt64{Int64: int64(rec.Comments), Valid: true},
		Replies:      sql.NullInt64{Int64: int64(rec.Replies), Valid: forum},
		Contributors: sql.NullInt64{Int64: int64(rec.Contributors), Valid: forum},

		LikeToViewRatio:    sql.NullFloat64{Float64: rec.LikeToViewRatio, Valid: true},
		CommentToViewRatio: sql.NullFloat64{Float64: rec.CommentToViewRatio, Valid: true},

		PopularityScore: sql.NullInt64{Int64: int64(rec.PopularityScore), Valid: true},
		EngagementScore: sql.NullInt64{Int64: int64(rec.EngagementScore), Valid: true},
		VolumeScore:     sql.NullInt64{Int64: int64(rec.VolumeScore), Valid: true},
		TrendScore:      sql.NullInt64{Int64: int64(rec.TrendScore), Valid: true},

		TrendDirection:   sql.NullString{String: string(rec.TrendDirection), Valid: rec.TrendDirection != ""},
		TrendAvgInterest: sql.NullFloat64{Float64: rec.TrendAvgInterest, Valid: true},

		Explanation: sql.NullString{String: rec.Explanation, Valid: true},
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}
