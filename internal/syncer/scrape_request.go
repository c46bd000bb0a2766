package syncer

import (
	"context"

	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/queue"
)

// ScrapeRequestQueue publishes scrape requests to the stream consumed by
// the external scraping collaborator. Fire-and-forget from the pipeline's
// point of view.
type ScrapeRequestQueue struct {
	producer queue.Producer
}

func NewScrapeRequestQueue(producer queue.Producer) *ScrapeRequestQueue {
	return &ScrapeRequestQueue{producer: producer}
}

func (q *ScrapeRequestQueue) RequestScrape(ctx context.Context, connectionID int64, kind model.ScrapeKind) error {
	return q.producer.Enqueue(ctx, queue.Task{
		TaskType:     queue.TaskTypeScrapeRequest,
		ConnectionID: connectionID,
		ScrapeKind:   string(kind),
	})
}
