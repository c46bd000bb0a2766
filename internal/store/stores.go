package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx that the stores need. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so the same stores work inside and outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Stores bundles all store implementations over one DBTX.
type Stores struct {
	Connections ConnectionStore
	Timeline    TimelineStore
	Feed        FeedStore
	Followers   FollowerStore
	Scrapes     ScrapeStore
	Scores      ScoreStore
}

func New(db DBTX) *Stores {
	return &Stores{
		Connections: newConnectionStore(db),
		Timeline:    newTimelineStore(db),
		Feed:        newFeedStore(db),
		Followers:   newFollowerStore(db),
		Scrapes:     newScrapeStore(db),
		Scores:      newScoreStore(db),
	}
}
