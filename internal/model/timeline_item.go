package model

import "time"

type ItemKind string

const (
	ItemKindInteraction ItemKind = "interaction"
	ItemKindMilestone   ItemKind = "milestone"
)

// Fragment is one piece of the render payload: plain text, optionally
// wrapped in a link.
type Fragment struct {
	Text string  `json:"text"`
	Href *string `json:"href,omitempty"`
}

// TimelineItem is a user-facing activity or milestone entry. UniqueID is
// unique per (user, connection) and is the idempotency key that makes
// stage re-runs safe. Items are created once and never mutated.
type TimelineItem struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	ConnectionID int64      `json:"connection_id"`
	Kind         ItemKind   `json:"kind"`
	Provider     Provider   `json:"provider"`
	PostedAt     time.Time  `json:"posted_at"`
	Score        int64      `json:"score"`
	Title        []Fragment `json:"title"`
	Subtitle     []Fragment `json:"subtitle,omitempty"`
	Language     *string    `json:"language,omitempty"`
	UniqueID     string     `json:"unique_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

func Text(s string) Fragment {
	return Fragment{Text: s}
}

func Link(s, href string) Fragment {
	return Fragment{Text: s, Href: &href}
}
