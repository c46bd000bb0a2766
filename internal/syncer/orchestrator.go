package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"devpulse.app/syncd/common/logger"
	"devpulse.app/syncd/internal/breaker"
	"devpulse.app/syncd/internal/jobstate"
	"devpulse.app/syncd/internal/lock"
	"devpulse.app/syncd/internal/metrics"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/provider"
	"devpulse.app/syncd/internal/queue"
	"devpulse.app/syncd/internal/store"
)

type OrchestratorConfig struct {
	// LockTTL bounds the damage of a crashed holder; it should comfortably
	// exceed one stage's execution budget.
	LockTTL time.Duration
}

// Orchestrator routes a sync task to its provider's stage machine and runs
// exactly one stage invocation: eligibility checks, lock, one bounded unit
// of work, checkpoint, re-enqueue or finish.
type Orchestrator struct {
	registry    *provider.Registry
	connections store.ConnectionStore
	locker      lock.Locker
	jobs        jobstate.Store
	breaker     *breaker.Breaker
	producer    queue.Producer
	metrics     *metrics.Collector
	cfg         OrchestratorConfig
}

func NewOrchestrator(
	registry *provider.Registry,
	connections store.ConnectionStore,
	locker lock.Locker,
	jobs jobstate.Store,
	brk *breaker.Breaker,
	producer queue.Producer,
	collector *metrics.Collector,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &Orchestrator{
		registry:    registry,
		connections: connections,
		locker:      locker,
		jobs:        jobs,
		breaker:     brk,
		producer:    producer,
		metrics:     collector,
		cfg:         cfg,
	}
}

// RunStage executes one stage invocation for the task. A nil return means
// the invocation is settled (including eligibility skips and aborted
// provider calls, which retry via the next sweep); a non-nil return means
// infrastructure failed mid-flight and the queue should redeliver.
func (o *Orchestrator) RunStage(ctx context.Context, task queue.Task) error {
	kind := model.SyncKind(task.SyncKind)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:    "syncd.orchestrator",
		ConnectionID: logger.Ptr(task.ConnectionID),
		JobID:        logger.Ptr(task.JobID),
		SyncKind:     logger.Ptr(task.SyncKind),
	})

	conn, err := o.connections.GetByID(ctx, task.ConnectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "connection vanished, dropping sync task")
			return nil
		}
		return fmt.Errorf("loading connection: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Provider: logger.Ptr(string(conn.Provider)),
	})

	if o.breaker.Open(conn) {
		slog.InfoContext(ctx, "breaker open, skipping sync",
			"error_count", conn.ErrorCount)
		return nil
	}

	machine := o.registry.Machine(conn.Provider, kind)
	if machine == nil {
		slog.DebugContext(ctx, "provider does not support sync kind, skipping")
		return nil
	}

	key := lock.ConnectionKey(conn.ID)
	token, ok, err := o.locker.Acquire(ctx, key, o.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquiring connection lock: %w", err)
	}
	if !ok {
		// Not an error: another worker owns this connection right now and
		// the next sweep will try again.
		o.metrics.RecordLockContention()
		slog.DebugContext(ctx, "connection locked, skipping run")
		return nil
	}
	defer func() {
		if relErr := o.locker.Release(ctx, key, token); relErr != nil {
			slog.WarnContext(ctx, "failed to release connection lock", "error", relErr)
		}
	}()

	st, err := o.jobs.Load(ctx, conn.ID, task.JobID)
	if err != nil {
		return fmt.Errorf("loading job state: %w", err)
	}
	if st == nil {
		st = &jobstate.State{
			Stage:     string(machine.First()),
			StartedAt: time.Now().UTC(),
		}
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Stage: logger.Ptr(st.Stage),
	})

	run := &provider.Run{
		Connection: conn,
		Kind:       kind,
		JobID:      task.JobID,
		State:      st,
	}

	start := time.Now()
	outcome, runErr := machine.Run(ctx, run)
	o.metrics.RecordStageLatency(time.Since(start))

	if runErr != nil {
		if errors.Is(runErr, provider.ErrScrapeMissing) {
			// Missing prerequisite, not a provider failure. Keep the state
			// alive and let a later sweep re-dispatch the same stage once
			// the scrape landed.
			o.metrics.RecordStageRun(string(conn.Provider), st.Stage, "deferred")
			slog.InfoContext(ctx, "scrape not yet available, deferring run")
			if err := o.jobs.Bump(ctx, conn.ID, task.JobID); err != nil {
				slog.WarnContext(ctx, "failed to bump job state", "error", err)
			}
			return nil
		}

		o.metrics.RecordStageRun(string(conn.Provider), st.Stage, "error")
		o.metrics.RecordBreakerTrip()
		o.breaker.Trip(ctx, conn.ID)
		slog.ErrorContext(ctx, "stage failed, aborting run without advancing",
			"error", runErr)
		return nil
	}

	// A successful unit of work closes the breaker before anything else.
	if conn.ErrorCount > 0 {
		if err := o.breaker.Reset(ctx, conn.ID); err != nil {
			slog.WarnContext(ctx, "failed to reset error count", "error", err)
		}
	}

	switch outcome {
	case provider.OutcomeRepeat, provider.OutcomeAdvance:
		if outcome == provider.OutcomeAdvance {
			o.metrics.RecordStageRun(string(conn.Provider), st.Stage, "advance")
			st.Stage = string(machine.Next(provider.Stage(st.Stage)))
		} else {
			o.metrics.RecordStageRun(string(conn.Provider), st.Stage, "repeat")
		}
		// Checkpoint strictly before re-enqueue: a crash between the two
		// reprocesses one unit at worst, which the dedup-on-insert absorbs.
		if err := o.jobs.Save(ctx, conn.ID, task.JobID, st); err != nil {
			return fmt.Errorf("saving job state: %w", err)
		}
		next := task
		next.Attempt = 1
		if err := o.producer.Enqueue(ctx, next); err != nil {
			return fmt.Errorf("re-enqueueing sync task: %w", err)
		}
		return nil

	case provider.OutcomeDone:
		o.metrics.RecordStageRun(string(conn.Provider), st.Stage, "done")
		if err := o.jobs.Clear(ctx, conn.ID, task.JobID); err != nil {
			slog.WarnContext(ctx, "failed to clear job state", "error", err)
		}
		if err := o.jobs.ClearActiveJob(ctx, conn.ID, kind); err != nil {
			slog.WarnContext(ctx, "failed to clear active job", "error", err)
		}
		slog.InfoContext(ctx, "sync run finished")
		return nil

	default:
		panic(fmt.Sprintf("unknown stage outcome %d", outcome))
	}
}
