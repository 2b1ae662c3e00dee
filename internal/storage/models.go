package storage

import "time"

// StartRecord is one trial's starting page and its distance to the target
type StartRecord struct {
	Trial   int
	Page    string
	Count   int
	Outcome string
}

// CacheEntry is a visited page and its best known distance to the target
type CacheEntry struct {
	Page  string
	Count int
}

// Run describes one execution of the experiment
type Run struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Trials     int
	Reached    int
}

// Metrics tracks run statistics for export on exit
type Metrics struct {
	RunID             string    `json:"run_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	TrialsCompleted   int       `json:"trials_completed"`
	TrialsReached     int       `json:"trials_reached"`
	Cycles            int       `json:"cycles"`
	DeadEnds          int       `json:"dead_ends"`
	CacheHits         int       `json:"cache_hits"`
	HopLimits         int       `json:"hop_limits"`
	TrialsErrored     int       `json:"trials_errored"`
	PagesFetched      int       `json:"pages_fetched"`
	PagesFailed       int       `json:"pages_failed"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}
