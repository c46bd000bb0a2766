// Package fanout materializes follower feeds. Each newly inserted timeline
// item is copied once per follower, as its own queued unit of work, so a
// huge follower list never blocks the ingesting stage.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"devpulse.app/syncd/common/id"
	"devpulse.app/syncd/common/logger"
	"devpulse.app/syncd/internal/metrics"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/store"
)

type Writer struct {
	timeline  store.TimelineStore
	followers store.FollowerStore
	feed      store.FeedStore
	metrics   *metrics.Collector
}

func NewWriter(timeline store.TimelineStore, followers store.FollowerStore, feed store.FeedStore, collector *metrics.Collector) *Writer {
	return &Writer{
		timeline:  timeline,
		followers: followers,
		feed:      feed,
		metrics:   collector,
	}
}

// FanOut copies one timeline item into every follower's feed. The feed
// insert is conflict-ignored, so a redelivered task writes nothing new.
func (w *Writer) FanOut(ctx context.Context, timelineItemID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:      "syncd.fanout",
		TimelineItemID: logger.Ptr(timelineItemID),
	})

	item, err := w.timeline.GetByID(ctx, timelineItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "timeline item vanished, dropping fan-out task")
			return nil
		}
		return fmt.Errorf("loading timeline item: %w", err)
	}

	followerIDs, err := w.followers.ListFollowerIDs(ctx, item.UserID)
	if err != nil {
		return fmt.Errorf("listing followers: %w", err)
	}
	if len(followerIDs) == 0 {
		return nil
	}

	feedItems := make([]model.FollowerFeedItem, 0, len(followerIDs))
	for _, followerID := range followerIDs {
		feedItems = append(feedItems, model.FollowerFeedItem{
			ID:             id.New(),
			FollowerID:     followerID,
			TimelineItemID: item.ID,
			ItemUserID:     item.UserID,
			Provider:       item.Provider,
			PostedAt:       item.PostedAt,
			Language:       item.Language,
		})
	}

	if err := w.feed.InsertBatch(ctx, feedItems); err != nil {
		return fmt.Errorf("inserting feed items: %w", err)
	}

	w.metrics.RecordFanOut(len(feedItems))
	slog.InfoContext(ctx, "fanned out timeline item", "followers", len(feedItems))
	return nil
}
