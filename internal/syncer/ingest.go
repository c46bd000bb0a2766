package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"devpulse.app/syncd/common/id"
	"devpulse.app/syncd/internal/metrics"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/queue"
	"devpulse.app/syncd/internal/store"
)

// Ingestor is the single write path for timeline items. The bulk insert is
// conflict-ignored, and only the rows that actually landed are fanned out:
// a duplicate candidate silently produces no feed rows.
type Ingestor struct {
	timeline store.TimelineStore
	producer queue.Producer
	metrics  *metrics.Collector
}

func NewIngestor(timeline store.TimelineStore, producer queue.Producer, collector *metrics.Collector) *Ingestor {
	return &Ingestor{
		timeline: timeline,
		producer: producer,
		metrics:  collector,
	}
}

func (i *Ingestor) Ingest(ctx context.Context, items []model.TimelineItem) ([]int64, error) {
	if len(items) == 0 {
		return nil, nil
	}

	for idx := range items {
		if items[idx].ID == 0 {
			items[idx].ID = id.New()
		}
	}

	inserted, err := i.timeline.InsertBatch(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("ingesting timeline items: %w", err)
	}

	i.metrics.RecordItemsInserted(len(inserted))
	i.metrics.RecordItemsSkipped(len(items) - len(inserted))

	for _, itemID := range inserted {
		if err := i.producer.Enqueue(ctx, queue.Task{
			TaskType:       queue.TaskTypeFanOut,
			TimelineItemID: itemID,
		}); err != nil {
			return nil, fmt.Errorf("enqueueing fan-out for item %d: %w", itemID, err)
		}
	}

	if len(inserted) > 0 {
		slog.InfoContext(ctx, "ingested timeline items",
			"candidates", len(items),
			"inserted", len(inserted))
	}
	return inserted, nil
}
