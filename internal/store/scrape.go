package store

import (
	"context"
	"errors"

	"devpulse.app/syncd/internal/model"
	"github.com/jackc/pgx/v5"
)

type scrapeStore struct {
	db DBTX
}

func newScrapeStore(db DBTX) ScrapeStore {
	return &scrapeStore{db: db}
}

func (s *scrapeStore) Get(ctx context.Context, connectionID int64, kind model.ScrapeKind) (*model.Scrape, error) {
	var scrape model.Scrape
	err := s.db.QueryRow(ctx,
		`SELECT connection_id, kind, scraped_at, payload
		 FROM scrapes WHERE connection_id = $1 AND kind = $2`,
		connectionID, string(kind)).
		Scan(&scrape.ConnectionID, &scrape.Kind, &scrape.ScrapedAt, &scrape.Payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &scrape, nil
}
