package domain

import "time"

// State is the orchestrator position within one query cycle.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StateEnriching   State = "enriching"
	StateStoring     State = "storing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Query describes one listing request.
type Query struct {
	Text string
	From time.Time
	To   time.Time
}

// RunStats holds counters for one cycle.
type RunStats struct {
	Fetched    int
	Normalized int
	Enriched   int
	Dropped    int
	Stored     int
}

// RunResult is what one cycle hands back to the caller.
type RunResult struct {
	RunID    string
	Query    string
	State    State
	Articles []Article
	// NoNews is set when the cycle produced no rows. Exhausted further
	// marks that the listing fetch gave up after retries.
	NoNews    bool
	Exhausted bool
	Stats     RunStats
	StartedAt time.Time
	Duration  time.Duration
}

func (r *RunResult) Table() Table {
	return NewTable(r.Articles)
}

// RunState is the persisted per-query bookkeeping.
type RunState struct {
	ID          int64     `db:"id"`
	Query       string    `db:"query"`
	LastRunID   string    `db:"last_run_id"`
	LastRunAt   time.Time `db:"last_run_at"`
	TotalStored int64     `db:"total_stored"`
}
