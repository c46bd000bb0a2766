package model

import "time"

type Provider string

const (
	ProviderGitLab        Provider = "gitlab"
	ProviderStackOverflow Provider = "stackoverflow"
	ProviderYouTube       Provider = "youtube"
)

// SyncKind selects which pipeline a connection is run through.
type SyncKind string

const (
	SyncKindTimeline   SyncKind = "timeline"
	SyncKindMilestones SyncKind = "milestones"
)

// Connection is one linked external provider account. The pipeline mutates
// only the watermarks and the error count; rows are created on account
// linking and never deleted here.
type Connection struct {
	ID                   int64      `json:"id"`
	Provider             Provider   `json:"provider"`
	UserID               int64      `json:"user_id"`
	AccountID            string     `json:"account_id"`
	Username             string     `json:"username"`
	AccessToken          string     `json:"-"`
	LastSyncTimelineAt   *time.Time `json:"last_sync_timeline_at,omitempty"`
	LastSyncMilestonesAt *time.Time `json:"last_sync_milestones_at,omitempty"`
	ErrorCount           int32      `json:"error_count"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Watermark returns the high-water mark for the given sync kind.
func (c *Connection) Watermark(kind SyncKind) *time.Time {
	if kind == SyncKindMilestones {
		return c.LastSyncMilestonesAt
	}
	return c.LastSyncTimelineAt
}
