// Package jobstate holds the only state that survives between re-enqueues
// of one logical sync run. Each (connection, job) pair owns a single
// versioned JSON blob with a rolling expiry: if a worker dies, the orphaned
// blob simply expires and the sweep starts over.
package jobstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"devpulse.app/syncd/internal/model"
	"github.com/redis/go-redis/v9"
)

// Version is bumped when the State layout changes incompatibly. A blob
// with a different version is treated as absent, which restarts the run.
const Version = 1

// State is everything a stage needs to resume after a worker restart.
type State struct {
	Version   int       `json:"version"`
	Stage     string    `json:"stage"`
	Cursor    string    `json:"cursor,omitempty"`
	StartedAt time.Time `json:"started_at"`

	// Events accumulates raw provider events across pages of a paginated
	// fetch stage, consumed by the stage that builds timeline items.
	Events []json.RawMessage `json:"events,omitempty"`

	// RepoShare maps repository name to the user's contribution fraction,
	// filled by the contribution stage and read by the attribution stage.
	RepoShare map[string]float64 `json:"repo_share,omitempty"`
}

type Store interface {
	// Load returns nil when no state exists for the job.
	Load(ctx context.Context, connectionID int64, jobID string) (*State, error)
	// Save persists the state and renews its expiry.
	Save(ctx context.Context, connectionID int64, jobID string, st *State) error
	// Bump renews the expiry without changing the value.
	Bump(ctx context.Context, connectionID int64, jobID string) error
	Clear(ctx context.Context, connectionID int64, jobID string) error

	// ActiveJob returns the job id currently assigned to a (connection,
	// kind) pair, or "" when none. The sweep reuses it so an aborted run
	// retries from its last persisted stage instead of starting over.
	ActiveJob(ctx context.Context, connectionID int64, kind model.SyncKind) (string, error)
	SetActiveJob(ctx context.Context, connectionID int64, kind model.SyncKind, jobID string) error
	ClearActiveJob(ctx context.Context, connectionID int64, kind model.SyncKind) error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func stateKey(connectionID int64, jobID string) string {
	return fmt.Sprintf("syncd:job:%d:%s", connectionID, jobID)
}

func activeJobKey(connectionID int64, kind model.SyncKind) string {
	return fmt.Sprintf("syncd:active:%s:%d", kind, connectionID)
}

func (s *redisStore) Load(ctx context.Context, connectionID int64, jobID string) (*State, error) {
	raw, err := s.client.Get(ctx, stateKey(connectionID, jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading job state: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decoding job state: %w", err)
	}
	if st.Version != Version {
		return nil, nil
	}
	return &st, nil
}

func (s *redisStore) Save(ctx context.Context, connectionID int64, jobID string, st *State) error {
	st.Version = Version
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding job state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(connectionID, jobID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving job state: %w", err)
	}
	return nil
}

func (s *redisStore) Bump(ctx context.Context, connectionID int64, jobID string) error {
	if err := s.client.Expire(ctx, stateKey(connectionID, jobID), s.ttl).Err(); err != nil {
		return fmt.Errorf("bumping job state: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, connectionID int64, jobID string) error {
	if err := s.client.Del(ctx, stateKey(connectionID, jobID)).Err(); err != nil {
		return fmt.Errorf("clearing job state: %w", err)
	}
	return nil
}

func (s *redisStore) ActiveJob(ctx context.Context, connectionID int64, kind model.SyncKind) (string, error) {
	jobID, err := s.client.Get(ctx, activeJobKey(connectionID, kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("loading active job: %w", err)
	}
	return jobID, nil
}

func (s *redisStore) SetActiveJob(ctx context.Context, connectionID int64, kind model.SyncKind, jobID string) error {
	if err := s.client.Set(ctx, activeJobKey(connectionID, kind), jobID, s.ttl).Err(); err != nil {
		return fmt.Errorf("setting active job: %w", err)
	}
	return nil
}

func (s *redisStore) ClearActiveJob(ctx context.Context, connectionID int64, kind model.SyncKind) error {
	if err := s.client.Del(ctx, activeJobKey(connectionID, kind)).Err(); err != nil {
		return fmt.Errorf("clearing active job: %w", err)
	}
	return nil
}
