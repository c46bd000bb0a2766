package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"devpulse.app/syncd/common/logger"
	"devpulse.app/syncd/internal/jobstate"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/queue"
	"devpulse.app/syncd/internal/store"
	"github.com/google/uuid"
)

// Sweeper periodically enqueues one orchestration run per eligible
// connection. It reuses a connection's active job id when one exists so an
// aborted run retries from its last persisted stage; otherwise it mints a
// fresh job id for a fresh run.
type Sweeper struct {
	connections  store.ConnectionStore
	jobs         jobstate.Store
	producer     queue.Producer
	errorCeiling int32
}

func NewSweeper(connections store.ConnectionStore, jobs jobstate.Store, producer queue.Producer, errorCeiling int32) *Sweeper {
	return &Sweeper{
		connections:  connections,
		jobs:         jobs,
		producer:     producer,
		errorCeiling: errorCeiling,
	}
}

func (s *Sweeper) SweepTimeline(ctx context.Context) error {
	return s.sweep(ctx, model.SyncKindTimeline)
}

func (s *Sweeper) SweepMilestones(ctx context.Context) error {
	return s.sweep(ctx, model.SyncKindMilestones)
}

func (s *Sweeper) sweep(ctx context.Context, kind model.SyncKind) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "syncd.sweeper",
		SyncKind:  logger.Ptr(string(kind)),
	})

	conns, err := s.connections.ListSyncable(ctx, s.errorCeiling)
	if err != nil {
		return fmt.Errorf("listing syncable connections: %w", err)
	}

	enqueued := 0
	for _, conn := range conns {
		jobID, err := s.jobs.ActiveJob(ctx, conn.ID, kind)
		if err != nil {
			slog.ErrorContext(ctx, "failed to resolve active job",
				"error", err,
				"connection_id", conn.ID)
			continue
		}
		if jobID == "" {
			jobID = uuid.NewString()
			if err := s.jobs.SetActiveJob(ctx, conn.ID, kind, jobID); err != nil {
				slog.ErrorContext(ctx, "failed to record active job",
					"error", err,
					"connection_id", conn.ID)
				continue
			}
		}

		if err := s.producer.Enqueue(ctx, queue.Task{
			TaskType:     queue.TaskTypeSync,
			ConnectionID: conn.ID,
			JobID:        jobID,
			SyncKind:     string(kind),
			Attempt:      1,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue sync task",
				"error", err,
				"connection_id", conn.ID)
			continue
		}
		enqueued++
	}

	slog.InfoContext(ctx, "sweep complete",
		"connections", len(conns),
		"enqueued", enqueued)
	return nil
}
