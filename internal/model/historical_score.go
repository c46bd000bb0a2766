package model

import "time"

type ScoreKind string

const (
	ScoreKindFollowers   ScoreKind = "followers"
	ScoreKindSubscribers ScoreKind = "subscribers"
)

// HistoricalScore is one per-connection, per-date score sample (e.g. a
// daily follower count). The milestone detector replays these to recover
// when a threshold was first crossed.
type HistoricalScore struct {
	ConnectionID int64     `json:"connection_id"`
	Kind         ScoreKind `json:"kind"`
	SampleDate   time.Time `json:"sample_date"`
	Score        int64     `json:"score"`
}
