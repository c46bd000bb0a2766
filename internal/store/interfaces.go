package store

import (
	"context"
	"errors"
	"time"

	"devpulse.app/syncd/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ConnectionStore defines the contract for connection data access
type ConnectionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Connection, error)
	// ListSyncable returns every connection whose error count is at or
	// below the given ceiling.
	ListSyncable(ctx context.Context, errorCeiling int32) ([]model.Connection, error)
	SetWatermark(ctx context.Context, id int64, kind model.SyncKind, at time.Time) error
	IncrementErrorCount(ctx context.Context, id int64) (int32, error)
	ResetErrorCount(ctx context.Context, id int64) error
}

// TimelineStore defines the contract for timeline item data access
type TimelineStore interface {
	GetByID(ctx context.Context, id int64) (*model.TimelineItem, error)
	// InsertBatch bulk-inserts with conflict-ignored semantics against the
	// (user_id, connection_id, unique_id) uniqueness constraint and returns
	// only the ids of rows that were actually created.
	InsertBatch(ctx context.Context, items []model.TimelineItem) ([]int64, error)
	ExistsByUniqueID(ctx context.Context, userID, connectionID int64, uniqueID string) (bool, error)
}

// FeedStore defines the contract for follower feed data access
type FeedStore interface {
	InsertBatch(ctx context.Context, items []model.FollowerFeedItem) error
}

// FollowerStore defines the contract for follower lookups
type FollowerStore interface {
	ListFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
}

// ScrapeStore defines read access to cached provider scrapes
type ScrapeStore interface {
	Get(ctx context.Context, connectionID int64, kind model.ScrapeKind) (*model.Scrape, error)
}

// ScoreStore defines read access to historical score samples
type ScoreStore interface {
	// ListByConnection returns samples ordered by sample date ascending.
	ListByConnection(ctx context.Context, connectionID int64, kind model.ScoreKind) ([]model.HistoricalScore, error)
}
