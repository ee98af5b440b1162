package storage

var pgMigration = []string{
	`CREATE TABLE video (
id uuid PRIMARY KEY,
youtube_id VARCHAR(255) NOT NULL UNIQUE,
title TEXT NOT NULL,
channel TEXT NOT NULL,
thumbnail TEXT NOT NULL,
transcript TEXT NOT NULL,
concept_title TEXT NOT NULL,
concept_summary TEXT NOT NULL,
mapped_concepts TEXT NOT NULL,
timestamped_concepts TEXT NOT NULL,
related_videos TEXT NOT NULL,
created_at BIGINT NOT NULL
)`,
	`CREATE INDEX video_created_at ON video (created_at DESC)`,
	`ALTER TABLE video ADD COLUMN concept_labels TEXT NOT NULL DEFAULT ''`,
}

var sqliteMigration = []string{
	`CREATE TABLE video (
id TEXT PRIMARY KEY,
youtube_id TEXT NOT NULL UNIQUE,
title TEXT NOT NULL,
channel TEXT NOT NULL,
thumbnail TEXT NOT NULL,
transcript TEXT NOT NULL,
concept_title TEXT NOT NULL,
concept_summary TEXT NOT NULL,
mapped_concepts TEXT NOT NULL,
timestamped_concepts TEXT NOT NULL,
related_videos TEXT NOT NULL,
created_at INTEGER NOT NULL
)`,
	`CREATE INDEX video_created_at ON video (created_at DESC)`,
	`ALTER TABLE video ADD COLUMN concept_labels TEXT NOT NULL DEFAULT ''`,
}
