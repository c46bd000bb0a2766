package store

import (
	"context"
	"fmt"
	"strings"

	"devpulse.app/syncd/internal/model"
)

type feedStore struct {
	db DBTX
}

func newFeedStore(db DBTX) FeedStore {
	return &feedStore{db: db}
}

// InsertBatch is conflict-ignored over (follower_id, timeline_item_id) so a
// redelivered fan-out task cannot duplicate feed rows.
func (s *feedStore) InsertBatch(ctx context.Context, items []model.FollowerFeedItem) error {
	if len(items) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO follower_feed_items
		(id, follower_id, timeline_item_id, item_user_id, provider, posted_at, language)
		VALUES `)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args,
			item.ID, item.FollowerID, item.TimelineItemID, item.ItemUserID,
			string(item.Provider), item.PostedAt, item.Language)
	}
	sb.WriteString(` ON CONFLICT (follower_id, timeline_item_id) DO NOTHING`)

	if _, err := s.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("inserting feed items: %w", err)
	}
	return nil
}
