package queue

type TaskType string

const (
	// TaskTypeSync runs one stage invocation for a connection.
	TaskTypeSync TaskType = "sync"
	// TaskTypeFanOut copies one new timeline item to every follower feed.
	TaskTypeFanOut TaskType = "fan_out"
	// TaskTypeScrapeRequest asks the external scraping collaborator for a
	// fresh snapshot. Published to its own stream; never consumed here.
	TaskTypeScrapeRequest TaskType = "scrape_request"
)

type Task struct {
	TaskType TaskType

	// Sync fields. JobID scopes the job state for one orchestration run and
	// is carried unchanged through every re-enqueue of that run.
	ConnectionID int64
	JobID        string
	SyncKind     string

	// Fan-out fields.
	TimelineItemID int64

	// Scrape request fields.
	ScrapeKind string

	Attempt int
	TraceID string
}
