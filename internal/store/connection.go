package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devpulse.app/syncd/internal/model"
	"github.com/jackc/pgx/v5"
)

type connectionStore struct {
	db DBTX
}

func newConnectionStore(db DBTX) ConnectionStore {
	return &connectionStore{db: db}
}

const connectionColumns = `id, provider, user_id, account_id, username, access_token,
	last_sync_timeline_at, last_sync_milestones_at, error_count, created_at, updated_at`

func (s *connectionStore) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	row := s.db.QueryRow(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
	conn, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conn, nil
}

func (s *connectionStore) ListSyncable(ctx context.Context, errorCeiling int32) ([]model.Connection, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE error_count <= $1 ORDER BY id`,
		errorCeiling)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *conn)
	}
	return conns, rows.Err()
}

func (s *connectionStore) SetWatermark(ctx context.Context, id int64, kind model.SyncKind, at time.Time) error {
	column := "last_sync_timeline_at"
	if kind == model.SyncKindMilestones {
		column = "last_sync_milestones_at"
	}
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE connections SET %s = $1, updated_at = now() WHERE id = $2`, column),
		at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *connectionStore) IncrementErrorCount(ctx context.Context, id int64) (int32, error) {
	var count int32
	err := s.db.QueryRow(ctx,
		`UPDATE connections SET error_count = error_count + 1, updated_at = now()
		 WHERE id = $1 RETURNING error_count`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return count, nil
}

func (s *connectionStore) ResetErrorCount(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE connections SET error_count = 0, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConnection(row pgx.Row) (*model.Connection, error) {
	var c model.Connection
	err := row.Scan(
		&c.ID, &c.Provider, &c.UserID, &c.AccountID, &c.Username, &c.AccessToken,
		&c.LastSyncTimelineAt, &c.LastSyncMilestonesAt, &c.ErrorCount,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
