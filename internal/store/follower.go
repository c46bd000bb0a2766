package store

import "context"

type followerStore struct {
	db DBTX
}

func newFollowerStore(db DBTX) FollowerStore {
	return &followerStore{db: db}
}

func (s *followerStore) ListFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT follower_id FROM followers WHERE user_id = $1 ORDER BY follower_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
