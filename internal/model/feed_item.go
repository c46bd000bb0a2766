package model

import "time"

// FollowerFeedItem is one denormalized feed row per (follower, timeline
// item), materialized at insertion time so a follower's feed can be served
// without a join-time fan-out. Later follows or un-follows do not change
// rows already written.
type FollowerFeedItem struct {
	ID             int64     `json:"id"`
	FollowerID     int64     `json:"follower_id"`
	TimelineItemID int64     `json:"timeline_item_id"`
	ItemUserID     int64     `json:"item_user_id"`
	Provider       Provider  `json:"provider"`
	PostedAt       time.Time `json:"posted_at"`
	Language       *string   `json:"language,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
