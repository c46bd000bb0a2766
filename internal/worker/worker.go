package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"devpulse.app/syncd/common/logger"
	"devpulse.app/syncd/internal/queue"
	"go.opentelemetry.io/otel/trace"
)

// StageRunner advances one sync stage for a connection.
// Mirrors syncer.Orchestrator - defined here to avoid import cycles.
type StageRunner interface {
	RunStage(ctx context.Context, task queue.Task) error
}

// FanOutWriter copies one timeline item into follower feeds.
type FanOutWriter interface {
	FanOut(ctx context.Context, timelineItemID int64) error
}

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer *queue.RedisConsumer
	stages   StageRunner
	fanout   FanOutWriter
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer *queue.RedisConsumer, stages StageRunner, fanout FanOutWriter, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		stages:    stages,
		fanout:    fanout,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"task_type", msg.Task.TaskType)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"task_type", msg.Task.TaskType)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage dispatches a message to the handler for its task type
// and ACKs on success. Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.Task.TraceID, "worker.process_message",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "syncd.worker",
		MessageID: logger.Ptr(msg.ID),
	})

	slog.InfoContext(ctx, "processing message",
		"task_type", msg.Task.TaskType,
		"attempt", msg.Task.Attempt)

	var err error
	switch msg.Task.TaskType {
	case queue.TaskTypeSync:
		err = w.stages.RunStage(ctx, msg.Task)
	case queue.TaskTypeFanOut:
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			TimelineItemID: logger.Ptr(msg.Task.TimelineItemID),
		})
		err = w.fanout.FanOut(ctx, msg.Task.TimelineItemID)
	default:
		// ParseMessage rejects unknown task types, but the scrape stream
		// is consumed by a different service. ACK so it doesn't loop.
		slog.WarnContext(ctx, "unhandled task type, acknowledging",
			"task_type", msg.Task.TaskType)
	}
	if err != nil {
		sc.RecordError(err)
		return err
	}

	if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
		// Log but don't fail - message will be reclaimed and reprocessing is safe
		slog.WarnContext(ctx, "failed to ACK message", "error", ackErr)
	}

	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Task.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"task_type", msg.Task.TaskType,
			"attempts", msg.Task.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"task_type", msg.Task.TaskType,
		"attempt", msg.Task.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
