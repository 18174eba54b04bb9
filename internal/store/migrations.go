package store

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    name                  TEXT NOT NULL,
    platform              TEXT NOT NULL,
    country               TEXT NOT NULL,
    views                 INTEGER DEFAULT 0,
    likes                 INTEGER DEFAULT 0,
    comments              INTEGER DEFAULT 0,
    replies               INTEGER,
    contributors          INTEGER,
    like_to_view_ratio    REAL DEFAULT 0,
    comment_to_view_ratio REAL DEFAULT 0,
    popularity_score      INTEGER,
    engagement_score      INTEGER,
    volume_score          INTEGER,
    trend_score           INTEGER,
    trend_direction       TEXT,
    trend_avg_interest    REAL,
    explanation           TEXT,
    created_at            DATETIME NOT NULL,
    updated_at            DATETIME NOT NULL,
    UNIQUE(name, platform, country)
);

CREATE INDEX IF NOT EXISTS idx_workflows_popularity ON workflows(popularity_score);
CREATE INDEX IF NOT EXISTS idx_workflows_platform_country ON workflows(platform, country);
`
