// Package breaker gates sync work behind a per-connection error counter.
// A connection above the ceiling is skipped by the sweep and the
// orchestrator until a successful unit of work, or the reset action,
// brings the counter back to zero.
package breaker

import (
	"context"
	"log/slog"

	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/store"
)

type Breaker struct {
	connections store.ConnectionStore
	ceiling     int32
}

func New(connections store.ConnectionStore, ceiling int32) *Breaker {
	return &Breaker{connections: connections, ceiling: ceiling}
}

func (b *Breaker) Ceiling() int32 {
	return b.ceiling
}

// Open reports whether the connection's error count exceeds the ceiling.
func (b *Breaker) Open(conn *model.Connection) bool {
	return conn.ErrorCount > b.ceiling
}

// Trip increments the connection's error count after a failed provider
// call.
func (b *Breaker) Trip(ctx context.Context, connectionID int64) {
	count, err := b.connections.IncrementErrorCount(ctx, connectionID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to increment error count",
			"error", err,
			"connection_id", connectionID)
		return
	}
	slog.WarnContext(ctx, "connection error count incremented",
		"connection_id", connectionID,
		"error_count", count,
		"ceiling", b.ceiling)
}

// Reset zeroes the counter. Called after every successful unit of work and
// by the operator-facing reset action.
func (b *Breaker) Reset(ctx context.Context, connectionID int64) error {
	return b.connections.ResetErrorCount(ctx, connectionID)
}
