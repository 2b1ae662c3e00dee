package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/wiki-walker/internal/crawler"
	"github.com/alvmarrod/wiki-walker/internal/memory"
	"github.com/alvmarrod/wiki-walker/internal/storage"
)

const (
	randomURL = "http://en.wikipedia.org/w/index.php?title=Special:Random"
	targetURL = "http://en.wikipedia.org/wiki/Target"
)

// fakeWiki serves synthetic articles; the random endpoint hands out
// starts in order
type fakeWiki struct {
	mu      sync.Mutex
	pages   map[string][]byte
	starts  []string
	fetches map[string]int
}

func newFakeWiki(starts ...string) *fakeWiki {
	return &fakeWiki{pages: make(map[string][]byte), starts: starts, fetches: make(map[string]int)}
}

func (f *fakeWiki) fetchCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches["http://en.wikipedia.org/wiki/"+name]
}

func (f *fakeWiki) add(name string, links ...string) {
	var body strings.Builder
	for _, l := range links {
		fmt.Fprintf(&body, `<a href="/wiki/%s">%s</a> `, l, l)
	}
	f.pages["http://en.wikipedia.org/wiki/"+name] = []byte(fmt.Sprintf(
		`<html><head><title>%s - Wikipedia</title></head><body><div id="mw-content-text"><p>%s</p></div></body></html>`,
		name, body.String()))
}

func (f *fakeWiki) Fetch(_ context.Context, url string) (*crawler.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if url == randomURL {
		if len(f.starts) == 0 {
			return nil, fmt.Errorf("no more starts")
		}
		url = "https://en.wikipedia.org/wiki/" + f.starts[0]
		f.starts = f.starts[1:]
	}
	f.fetches[crawler.CanonicalURL(url)]++
	body, ok := f.pages[crawler.CanonicalURL(url)]
	if !ok {
		return nil, fmt.Errorf("not found: %s", url)
	}
	return &crawler.Page{URL: url, Body: body}, nil
}

func newTestRunner(wiki *fakeWiki, trials int, store *storage.Storage) (*Runner, *memory.DistanceCache) {
	cache := memory.NewDistanceCache()
	walker := crawler.NewWalker(wiki, cache, targetURL, 50)
	opts := Options{Trials: trials, Workers: 1, RandomURL: randomURL, TopK: 5}
	return NewRunner(opts, walker, cache, store), cache
}

func TestRunChainToTarget(t *testing.T) {
	wiki := newFakeWiki("A")
	wiki.add("A", "B")
	wiki.add("B", "Target")
	wiki.add("Target", "A")
	runner, _ := newTestRunner(wiki, 1, nil)

	report, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []storage.StartRecord{{Trial: 1, Page: "A", Count: 2, Outcome: "reached"}}, report.Starts)
	assert.Equal(t, []storage.CacheEntry{
		{Page: "A", Count: 2},
		{Page: "B", Count: 1},
		{Page: "Target", Count: 0},
	}, report.Pages)
	assert.Equal(t, 1, report.Summary.Reached)
	assert.Equal(t, runner.RunID(), report.RunID)
}

func TestRunCycle(t *testing.T) {
	wiki := newFakeWiki("A")
	wiki.add("A", "B")
	wiki.add("B", "A")
	runner, cache := newTestRunner(wiki, 1, nil)

	report, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []storage.StartRecord{{Trial: 1, Page: "A", Count: -1, Outcome: "cycle"}}, report.Starts)
	assert.Equal(t, 2, cache.Len())
	d, _ := cache.Lookup("B")
	assert.Equal(t, -1, d)
	assert.Equal(t, 0, report.Summary.Reached)
}

func TestRunReusesCacheAcrossTrials(t *testing.T) {
	wiki := newFakeWiki("A", "C", "E")
	wiki.add("A", "B")
	wiki.add("B", "Target")
	wiki.add("Target", "A")
	wiki.add("C", "B")
	wiki.add("E", "F")
	wiki.add("F", "E")
	runner, cache := newTestRunner(wiki, 3, nil)

	report, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []storage.StartRecord{
		{Trial: 1, Page: "A", Count: 2, Outcome: "reached"},
		{Trial: 2, Page: "C", Count: 2, Outcome: "cache_hit"},
		{Trial: 3, Page: "E", Count: -1, Outcome: "cycle"},
	}, report.Starts)

	d, ok := cache.Lookup("C")
	require.True(t, ok)
	assert.Equal(t, 2, d)
	assert.Equal(t, 1, wiki.fetchCount("Target"), "trial 2 must stop at the cached B")

	assert.Equal(t, 3, report.Summary.Trials)
	assert.Equal(t, 2, report.Summary.Reached)
	assert.InDelta(t, 2.0, report.Summary.Mean, 1e-9)
}

func TestRunErroredTrialLeavesCacheAlone(t *testing.T) {
	wiki := newFakeWiki("Ghost", "A")
	wiki.add("A", "Missing")
	runner, cache := newTestRunner(wiki, 2, nil)

	report, err := runner.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, report.Starts, 2)
	assert.Equal(t, storage.StartRecord{Trial: 1, Page: "", Count: -1, Outcome: "errored"}, report.Starts[0])
	assert.Equal(t, storage.StartRecord{Trial: 2, Page: "A", Count: -1, Outcome: "errored"}, report.Starts[1])
	assert.Equal(t, 0, cache.Len())
}

func TestRunCacheConsistency(t *testing.T) {
	wiki := newFakeWiki("A", "X", "C")
	wiki.add("A", "B")
	wiki.add("B", "Target")
	wiki.add("Target", "Target")
	wiki.add("X", "Y")
	wiki.add("Y", "Z")
	wiki.add("Z", "Target")
	wiki.add("C", "D")
	wiki.add("D")

	var paths [][]string
	runner, cache := newTestRunner(wiki, 3, nil)
	runner.OnTrial(func(_ int, res crawler.Result) {
		paths = append(paths, res.Path)
	})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	for _, e := range cache.Entries() {
		if e.Count < 0 {
			continue
		}
		found := false
		for _, p := range paths {
			for i, title := range p {
				if title == e.Page && i == len(p)-1-e.Count {
					found = true
				}
			}
		}
		assert.True(t, found, "no path places %s at distance %d", e.Page, e.Count)
	}
}

func TestRunWithStorage(t *testing.T) {
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "walker.db"))
	require.NoError(t, err)
	defer store.Close()

	wiki := newFakeWiki("A", "A")
	wiki.add("A", "B")
	wiki.add("B", "Target")
	wiki.add("Target")
	runner, _ := newTestRunner(wiki, 2, store)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	run, err := store.GetRun(report.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 2, run.Trials)
	assert.Equal(t, 2, run.Reached)
	assert.NotNil(t, run.FinishedAt)

	starts, err := store.LoadStartingPages(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.Starts, starts)

	pages, err := store.LoadPages()
	require.NoError(t, err)
	assert.Equal(t, report.Pages, pages)

	t.Run("load report", func(t *testing.T) {
		loaded, err := LoadReport(store, report.RunID, 5)
		require.NoError(t, err)
		assert.Equal(t, report, loaded)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := LoadReport(store, "nope", 5)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}

func TestExport(t *testing.T) {
	wiki := newFakeWiki("A", "E")
	wiki.add("A", "Target")
	wiki.add("Target")
	wiki.add("E")
	runner, _ := newTestRunner(wiki, 2, nil)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "save")
	require.NoError(t, Export(dir, report))

	for _, name := range []string{storage.StartingPagesFile, storage.AllPagesFile, storage.DistancesFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	data, err := os.ReadFile(filepath.Join(dir, storage.DistancesFile))
	require.NoError(t, err)
	assert.Equal(t, "count\n1\n", string(data))
}

// scriptedWalker returns fixed results per trial after a random delay
type scriptedWalker struct {
	results map[int]crawler.Result
}

func (s *scriptedWalker) Walk(_ context.Context, trial int, _ string) crawler.Result {
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	return s.results[trial]
}

func scripted(trials int) *scriptedWalker {
	w := &scriptedWalker{results: make(map[int]crawler.Result)}
	for i := 1; i <= trials; i++ {
		shared := fmt.Sprintf("Hub%d", i%3)
		if i%4 == 0 {
			w.results[i] = crawler.Result{Path: []string{fmt.Sprintf("S%d", i), shared}, Distance: -1, Outcome: crawler.OutcomeCycle}
			continue
		}
		w.results[i] = crawler.Result{Path: []string{fmt.Sprintf("S%d", i), shared, "Target"}, Distance: 2, Outcome: crawler.OutcomeReached}
	}
	return w
}

func TestRunCommitsInTrialOrder(t *testing.T) {
	const trials = 24

	run := func(workers int) *Report {
		cache := memory.NewDistanceCache()
		opts := Options{Trials: trials, Workers: workers, RandomURL: randomURL, TopK: 5}
		report, err := NewRunner(opts, scripted(trials), cache, nil).Run(context.Background())
		require.NoError(t, err)
		return report
	}

	sequential := run(1)
	parallel := run(6)

	require.Len(t, parallel.Starts, trials)
	for i, rec := range parallel.Starts {
		assert.Equal(t, i+1, rec.Trial)
	}
	assert.Equal(t, sequential.Starts, parallel.Starts)
	assert.Equal(t, sequential.Pages, parallel.Pages)
	assert.Equal(t, sequential.Summary, parallel.Summary)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := Options{Trials: 5, Workers: 2, RandomURL: randomURL, TopK: 5}

	report, err := NewRunner(opts, scripted(5), memory.NewDistanceCache(), nil).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Starts)
}

// fixedStarts walks each trial from its own article instead of the random
// endpoint, so start pages do not depend on which worker asks first
type fixedStarts struct {
	walker *crawler.Walker
	starts []string
}

func (f fixedStarts) Walk(ctx context.Context, trial int, _ string) crawler.Result {
	return f.walker.Walk(ctx, trial, "http://en.wikipedia.org/wiki/"+f.starts[trial-1])
}

func TestRunWorkersMatchSequential(t *testing.T) {
	wiki := newFakeWiki()
	for i := 0; i < 14; i++ {
		wiki.add(fmt.Sprintf("C%d", i), fmt.Sprintf("C%d", i+1))
	}
	wiki.add("C14", "Target")
	wiki.add("Target")
	wiki.add("A", "B")
	wiki.add("B", "Target")
	wiki.add("D", "B")
	wiki.add("E", "F")
	wiki.add("F", "E")
	wiki.add("G", "F")
	starts := []string{"C0", "C5", "A", "D", "E", "G", "C12", "C3", "B", "C11"}

	run := func(workers int) *Report {
		cache := memory.NewDistanceCache()
		walker := fixedStarts{walker: crawler.NewWalker(wiki, cache, targetURL, 10), starts: starts}
		opts := Options{Trials: len(starts), Workers: workers, RandomURL: randomURL, TopK: 5}
		report, err := NewRunner(opts, walker, cache, nil).Run(context.Background())
		require.NoError(t, err)
		return report
	}

	sequential := run(1)
	assert.Equal(t, []storage.StartRecord{
		{Trial: 1, Page: "C0", Count: -1, Outcome: "hop_limit"},
		{Trial: 2, Page: "C5", Count: -1, Outcome: "cache_hit"},
		{Trial: 3, Page: "A", Count: 2, Outcome: "reached"},
		{Trial: 4, Page: "D", Count: 2, Outcome: "cache_hit"},
		{Trial: 5, Page: "E", Count: -1, Outcome: "cycle"},
		{Trial: 6, Page: "G", Count: -1, Outcome: "cache_hit"},
		{Trial: 7, Page: "C12", Count: 3, Outcome: "reached"},
		{Trial: 8, Page: "C3", Count: -1, Outcome: "cache_hit"},
		{Trial: 9, Page: "B", Count: 1, Outcome: "cache_hit"},
		{Trial: 10, Page: "C11", Count: 4, Outcome: "cache_hit"},
	}, sequential.Starts)

	for i := 0; i < 10; i++ {
		parallel := run(4)
		assert.Equal(t, sequential.Starts, parallel.Starts)
		assert.Equal(t, sequential.Pages, parallel.Pages)
		assert.Equal(t, sequential.Summary, parallel.Summary)
	}
}

func TestReconcile(t *testing.T) {
	cache := memory.NewDistanceCache()
	cache.Upsert("Hub", 3)
	cache.Upsert("Dead", -1)
	cache.Upsert("Target", 0)

	tests := []struct {
		name string
		in   crawler.Result
		want crawler.Result
	}{
		{
			name: "nothing cached on the path",
			in:   crawler.Result{Start: "A", Path: []string{"A", "B"}, Distance: -1, Outcome: crawler.OutcomeNoLink},
			want: crawler.Result{Start: "A", Path: []string{"A", "B"}, Distance: -1, Outcome: crawler.OutcomeNoLink},
		},
		{
			name: "walked through a title committed meanwhile",
			in:   crawler.Result{Start: "A", Path: []string{"A", "Hub", "X", "Target"}, Distance: 3, Outcome: crawler.OutcomeReached},
			want: crawler.Result{Start: "A", Path: []string{"A"}, Distance: 4, Outcome: crawler.OutcomeCacheHit},
		},
		{
			name: "failed title committed meanwhile",
			in:   crawler.Result{Start: "Dead", Path: []string{"Dead", "Y"}, Distance: -1, Outcome: crawler.OutcomeHopLimit},
			want: crawler.Result{Start: "Dead", Path: []string{}, Distance: -1, Outcome: crawler.OutcomeCacheHit},
		},
		{
			name: "target at the end is kept",
			in:   crawler.Result{Start: "A", Path: []string{"A", "Target"}, Distance: 1, Outcome: crawler.OutcomeReached},
			want: crawler.Result{Start: "A", Path: []string{"A", "Target"}, Distance: 1, Outcome: crawler.OutcomeReached},
		},
		{
			name: "errored walk becomes a cache hit",
			in:   crawler.Result{Start: "A", Path: []string{"A", "Hub"}, Distance: -1, Outcome: crawler.OutcomeErrored, Err: fmt.Errorf("boom")},
			want: crawler.Result{Start: "A", Path: []string{"A"}, Distance: 4, Outcome: crawler.OutcomeCacheHit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconcile(tt.in, cache))
		})
	}
}
