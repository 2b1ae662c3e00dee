package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/wiki-walker/internal/crawler"
	"github.com/alvmarrod/wiki-walker/internal/storage"
)

// Tracker holds and manages run metrics
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker(runID string) *Tracker {
	return &Tracker{
		data: storage.Metrics{
			RunID:     runID,
			StartTime: time.Now(),
		},
	}
}

// RecordPage counts one fetch made by a walk
func (t *Tracker) RecordPage(ev crawler.PageEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.Err != nil {
		t.data.PagesFailed++
		return
	}
	t.data.PagesFetched++
	t.totalFetchTimeMs += ev.Duration.Milliseconds()
	t.fetchCount++
}

// RecordTrial counts a finished walk by outcome
func (t *Tracker) RecordTrial(res crawler.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.TrialsCompleted++
	if res.Distance >= 0 {
		t.data.TrialsReached++
	}

	switch res.Outcome {
	case crawler.OutcomeCycle:
		t.data.Cycles++
	case crawler.OutcomeNoLink:
		t.data.DeadEnds++
	case crawler.OutcomeCacheHit:
		t.data.CacheHits++
	case crawler.OutcomeHopLimit:
		t.data.HopLimits++
	case crawler.OutcomeErrored:
		t.data.TrialsErrored++
	}
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs

	// Calculate average fetch time
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(t.GetSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	s := t.GetSnapshot()

	return fmt.Sprintf("Trials: %d done, %d reached | Failures: %d cycles, %d dead ends, %d hop limits, %d errored | Pages: %d fetched, %d failed, avg %dms",
		s.TrialsCompleted,
		s.TrialsReached,
		s.Cycles,
		s.DeadEnds,
		s.HopLimits,
		s.TrialsErrored,
		s.PagesFetched,
		s.PagesFailed,
		s.AvgFetchTimeMs,
	)
}
