package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs
// within a context. Fields flow through context enrichment, so business
// context (connection_id, job_id, stage, ...) shows up in every log
// statement without being threaded by hand.
type LogFields struct {
	ConnectionID   *int64  // Connection being synced
	JobID          *string // Job id scoping one orchestration run
	SyncKind       *string // "timeline" or "milestones"
	Provider       *string // External provider name
	Stage          *string // Current stage name
	MessageID      *string // Redis stream message ID
	TimelineItemID *int64  // Timeline item being fanned out
	Component      string  // Component name (e.g. "syncd.orchestrator")
}

// WithLogFields enriches context with structured log fields. Multiple
// calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, incoming LogFields) LogFields {
	result := existing

	if incoming.ConnectionID != nil {
		result.ConnectionID = incoming.ConnectionID
	}
	if incoming.JobID != nil {
		result.JobID = incoming.JobID
	}
	if incoming.SyncKind != nil {
		result.SyncKind = incoming.SyncKind
	}
	if incoming.Provider != nil {
		result.Provider = incoming.Provider
	}
	if incoming.Stage != nil {
		result.Stage = incoming.Stage
	}
	if incoming.MessageID != nil {
		result.MessageID = incoming.MessageID
	}
	if incoming.TimelineItemID != nil {
		result.TimelineItemID = incoming.TimelineItemID
	}
	if incoming.Component != "" {
		result.Component = incoming.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value, for setting LogFields
// inline.
func Ptr[T any](v T) *T {
	return &v
}
