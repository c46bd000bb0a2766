package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"devpulse.app/syncd/internal/model"
	"github.com/jackc/pgx/v5"
)

type timelineStore struct {
	db DBTX
}

func newTimelineStore(db DBTX) TimelineStore {
	return &timelineStore{db: db}
}

func (s *timelineStore) GetByID(ctx context.Context, id int64) (*model.TimelineItem, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, user_id, connection_id, kind, provider, posted_at, score,
		        title, subtitle, language, unique_id, created_at
		 FROM timeline_items WHERE id = $1`, id)

	var (
		item             model.TimelineItem
		titleRaw, subRaw []byte
	)
	err := row.Scan(
		&item.ID, &item.UserID, &item.ConnectionID, &item.Kind, &item.Provider,
		&item.PostedAt, &item.Score, &titleRaw, &subRaw, &item.Language,
		&item.UniqueID, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(titleRaw, &item.Title); err != nil {
		return nil, fmt.Errorf("decoding title: %w", err)
	}
	if len(subRaw) > 0 {
		if err := json.Unmarshal(subRaw, &item.Subtitle); err != nil {
			return nil, fmt.Errorf("decoding subtitle: %w", err)
		}
	}
	return &item, nil
}

// InsertBatch relies on the unique index over (user_id, connection_id,
// unique_id): duplicates are dropped by ON CONFLICT DO NOTHING and only the
// rows that actually landed are returned. Callers fan out exactly that set.
func (s *timelineStore) InsertBatch(ctx context.Context, items []model.TimelineItem) ([]int64, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO timeline_items
		(id, user_id, connection_id, kind, provider, posted_at, score, title, subtitle, language, unique_id)
		VALUES `)
	for i, item := range items {
		title, err := json.Marshal(item.Title)
		if err != nil {
			return nil, fmt.Errorf("encoding title: %w", err)
		}
		subtitle, err := json.Marshal(item.Subtitle)
		if err != nil {
			return nil, fmt.Errorf("encoding subtitle: %w", err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 11
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11)
		args = append(args,
			item.ID, item.UserID, item.ConnectionID, string(item.Kind), string(item.Provider),
			item.PostedAt, item.Score, title, subtitle, item.Language, item.UniqueID)
	}
	sb.WriteString(` ON CONFLICT (user_id, connection_id, unique_id) DO NOTHING RETURNING id`)

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("inserting timeline items: %w", err)
	}
	defer rows.Close()

	var inserted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		inserted = append(inserted, id)
	}
	return inserted, rows.Err()
}

func (s *timelineStore) ExistsByUniqueID(ctx context.Context, userID, connectionID int64, uniqueID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM timeline_items
			WHERE user_id = $1 AND connection_id = $2 AND unique_id = $3
		)`, userID, connectionID, uniqueID).Scan(&exists)
	return exists, err
}
