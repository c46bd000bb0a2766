package model

import (
	"encoding/json"
	"time"
)

// ScrapeKind names one provider resource a scrape snapshots.
type ScrapeKind string

const (
	ScrapeKindAnswers             ScrapeKind = "answers"
	ScrapeKindVideos              ScrapeKind = "videos"
	ScrapeKindContributedProjects ScrapeKind = "contributed_projects"
)

// Scrape is a cached, timestamped snapshot of raw provider data for one
// (connection, kind) pair. Produced by the external scraping collaborator;
// the pipeline only reads it.
type Scrape struct {
	ConnectionID int64           `json:"connection_id"`
	Kind         ScrapeKind      `json:"kind"`
	ScrapedAt    time.Time       `json:"scraped_at"`
	Payload      json.RawMessage `json:"payload"`
}
