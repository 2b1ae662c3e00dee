package metrics

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/wiki-walker/internal/crawler"
	"github.com/alvmarrod/wiki-walker/internal/storage"
)

func TestTracker(t *testing.T) {
	tracker := NewTracker("run-1")

	tracker.RecordPage(crawler.PageEvent{Duration: 100 * time.Millisecond})
	tracker.RecordPage(crawler.PageEvent{Duration: 300 * time.Millisecond})
	tracker.RecordPage(crawler.PageEvent{Err: errors.New("boom")})

	tracker.RecordTrial(crawler.Result{Distance: 3, Outcome: crawler.OutcomeReached})
	tracker.RecordTrial(crawler.Result{Distance: 5, Outcome: crawler.OutcomeCacheHit})
	tracker.RecordTrial(crawler.Result{Distance: -1, Outcome: crawler.OutcomeCacheHit})
	tracker.RecordTrial(crawler.Result{Distance: -1, Outcome: crawler.OutcomeCycle})
	tracker.RecordTrial(crawler.Result{Distance: -1, Outcome: crawler.OutcomeNoLink})
	tracker.RecordTrial(crawler.Result{Distance: -1, Outcome: crawler.OutcomeHopLimit})
	tracker.RecordTrial(crawler.Result{Distance: -1, Outcome: crawler.OutcomeErrored})

	snap := tracker.GetSnapshot()

	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 2, snap.PagesFetched)
	assert.Equal(t, 1, snap.PagesFailed)
	assert.Equal(t, int64(400), snap.TotalFetchTimeMs)
	assert.Equal(t, int64(200), snap.AvgFetchTimeMs)
	assert.Equal(t, 7, snap.TrialsCompleted)
	assert.Equal(t, 2, snap.TrialsReached)
	assert.Equal(t, 2, snap.CacheHits)
	assert.Equal(t, 1, snap.Cycles)
	assert.Equal(t, 1, snap.DeadEnds)
	assert.Equal(t, 1, snap.HopLimits)
	assert.Equal(t, 1, snap.TrialsErrored)

	progress := tracker.LogProgress()
	assert.Contains(t, progress, "Trials: 7 done, 2 reached")
	assert.Contains(t, progress, "2 fetched, 1 failed, avg 200ms")
}

func TestWriteToFile(t *testing.T) {
	tracker := NewTracker("run-2")
	tracker.RecordTrial(crawler.Result{Distance: 1, Outcome: crawler.OutcomeReached})
	tracker.RecordPage(crawler.PageEvent{Duration: 50 * time.Millisecond})
	path := filepath.Join(t.TempDir(), "metrics.json")

	require.NoError(t, tracker.WriteToFile(path, "completed"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var m storage.Metrics
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "run-2", m.RunID)
	assert.Equal(t, "completed", m.TerminationReason)
	assert.Equal(t, 1, m.TrialsReached)
	assert.Equal(t, int64(50), m.AvgFetchTimeMs)
	assert.False(t, m.EndTime.Before(m.StartTime))
}
