// Package provider holds one stage-machine adapter per external provider.
// A stage is one bounded, resumable unit of a sync run; stages form a
// strict linear order ending in StageFinish.
package provider

import (
	"context"
	"errors"

	"devpulse.app/syncd/internal/jobstate"
	"devpulse.app/syncd/internal/metrics"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/store"
)

type Stage string

// StageFinish terminates every machine. Running it persists the
// connection's watermark; transitioning past it is a programming error.
const StageFinish Stage = "finish"

// Outcome of one stage unit of work.
type Outcome int

const (
	// OutcomeRepeat means more work remains in the current stage.
	OutcomeRepeat Outcome = iota
	// OutcomeAdvance means the stage completed and the machine should move
	// to the next stage.
	OutcomeAdvance
	// OutcomeDone means the terminal stage ran and the run is over.
	OutcomeDone
)

// ErrScrapeMissing signals a missing prerequisite snapshot. Not a provider
// failure: the stage has requested a fresh scrape and the run retries on a
// later sweep without tripping the breaker.
var ErrScrapeMissing = errors.New("scrape not yet available")

// Run carries the per-invocation inputs of one stage execution. State is
// mutated in place; the orchestrator persists it before any re-enqueue.
type Run struct {
	Connection *model.Connection
	Kind       model.SyncKind
	JobID      string
	State      *jobstate.State
}

// Machine drives one (provider, sync kind) pair through its stages.
type Machine interface {
	First() Stage
	// Next returns the stage after s. It panics when called on StageFinish:
	// the terminal stage must never be re-entered.
	Next(s Stage) Stage
	Run(ctx context.Context, run *Run) (Outcome, error)
}

// Adapter exposes a provider's machines.
type Adapter interface {
	Provider() model.Provider
	// Machine returns nil when the provider does not support the kind.
	Machine(kind model.SyncKind) Machine
}

// Ingestor is the idempotent timeline sink stages write through.
type Ingestor interface {
	Ingest(ctx context.Context, items []model.TimelineItem) ([]int64, error)
}

// ScrapeRequester asks the external scraping collaborator for a snapshot.
// Fire-and-forget: the current run defers and a later sweep re-reads.
type ScrapeRequester interface {
	RequestScrape(ctx context.Context, connectionID int64, kind model.ScrapeKind) error
}

// Deps groups the collaborators shared by all adapters.
type Deps struct {
	Stores   *store.Stores
	Ingestor Ingestor
	Scrapes  ScrapeRequester
	Metrics  *metrics.Collector
}

type Registry struct {
	adapters map[model.Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[model.Provider]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Provider()] = a
	}
	return &Registry{adapters: m}
}

// Machine resolves the stage machine for a (provider, kind) pair, or nil
// when either the provider is unknown or the kind is unsupported.
func (r *Registry) Machine(p model.Provider, kind model.SyncKind) Machine {
	adapter, ok := r.adapters[p]
	if !ok {
		return nil
	}
	return adapter.Machine(kind)
}

// finish persists the run's watermark and ends the machine. Shared by all
// providers: the watermark is the run-start timestamp, so activity that
// arrived mid-run is re-examined by the next run and deduplicated on
// insert.
func finish(ctx context.Context, connections store.ConnectionStore, run *Run) (Outcome, error) {
	if err := connections.SetWatermark(ctx, run.Connection.ID, run.Kind, run.State.StartedAt); err != nil {
		return 0, err
	}
	return OutcomeDone, nil
}
