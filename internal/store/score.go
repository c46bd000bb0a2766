package store

import (
	"context"

	"devpulse.app/syncd/internal/model"
)

type scoreStore struct {
	db DBTX
}

func newScoreStore(db DBTX) ScoreStore {
	return &scoreStore{db: db}
}

func (s *scoreStore) ListByConnection(ctx context.Context, connectionID int64, kind model.ScoreKind) ([]model.HistoricalScore, error) {
	rows, err := s.db.Query(ctx,
		`SELECT connection_id, kind, sample_date, score
		 FROM historical_scores
		 WHERE connection_id = $1 AND kind = $2
		 ORDER BY sample_date`,
		connectionID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []model.HistoricalScore
	for rows.Next() {
		var sample model.HistoricalScore
		if err := rows.Scan(&sample.ConnectionID, &sample.Kind, &sample.SampleDate, &sample.Score); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
