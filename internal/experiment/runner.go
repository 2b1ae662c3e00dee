// Package experiment runs many walks and aggregates their outcomes.
package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/alvmarrod/wiki-walker/internal/crawler"
	"github.com/alvmarrod/wiki-walker/internal/memory"
	"github.com/alvmarrod/wiki-walker/internal/stats"
	"github.com/alvmarrod/wiki-walker/internal/storage"
)

// ErrRunNotFound is returned by LoadReport for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// Walker runs a single trial
type Walker interface {
	Walk(ctx context.Context, trial int, startURL string) crawler.Result
}

// Options controls a run
type Options struct {
	Trials    int
	Workers   int
	RandomURL string
	TopK      int
}

// Report is the outcome of a run
type Report struct {
	RunID   string
	Starts  []storage.StartRecord
	Pages   []storage.CacheEntry
	Summary stats.Summary
}

type trialResult struct {
	trial  int
	result crawler.Result
}

// Runner executes trials and maintains the shared distance cache
type Runner struct {
	opts    Options
	walker  Walker
	cache   *memory.DistanceCache
	store   *storage.Storage
	runID   string
	starts  []storage.StartRecord
	onTrial func(trial int, res crawler.Result)
}

// NewRunner creates a runner. store may be nil to skip the database.
func NewRunner(opts Options, walker Walker, cache *memory.DistanceCache, store *storage.Storage) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		opts:   opts,
		walker: walker,
		cache:  cache,
		store:  store,
		runID:  uuid.NewString(),
	}
}

// RunID identifies this run in the database and metrics
func (r *Runner) RunID() string {
	return r.runID
}

// OnTrial registers a callback invoked as each trial is committed, in trial order
func (r *Runner) OnTrial(fn func(trial int, res crawler.Result)) {
	r.onTrial = fn
}

// Run executes all trials. With one worker each trial is committed before
// the next one starts; with more, trials walk concurrently but are committed
// to the cache strictly in trial order. If ctx is cancelled the report
// covers the trials committed so far and the context error is returned.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.store != nil {
		if err := r.store.CreateRun(r.runID); err != nil {
			return nil, err
		}
	}

	logrus.Infof("Run %s: %d trials, %d workers", r.runID, r.opts.Trials, r.opts.Workers)

	var runErr error
	if r.opts.Workers == 1 {
		runErr = r.runSequential(ctx)
	} else {
		runErr = r.runConcurrent(ctx)
	}

	report, err := r.finish()
	if err != nil {
		return report, err
	}
	return report, runErr
}

// runSequential commits every trial before the next one starts
func (r *Runner) runSequential(ctx context.Context) error {
	for trial := 1; trial <= r.opts.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.commit(trial, r.walker.Walk(ctx, trial, r.opts.RandomURL))
	}
	return nil
}

// runConcurrent walks trials in parallel. Results are committed in trial
// order and reconciled against the cache at commit time, so the committed
// outcomes equal those of runSequential for the same start pages.
func (r *Runner) runConcurrent(ctx context.Context) error {
	queue := NewQueue()
	for i := 1; i <= r.opts.Trials; i++ {
		queue.Push(i)
	}
	queue.Stop()

	results := make(chan trialResult, r.opts.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.opts.Workers; w++ {
		g.Go(func() error {
			for {
				trial, ok := queue.Pop()
				if !ok {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				logrus.Debugf("Trial %d picked up, %d waiting", trial, queue.Size())

				res := r.walker.Walk(gctx, trial, r.opts.RandomURL)
				select {
				case results <- trialResult{trial: trial, result: res}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(results)
	}()

	// Commit in trial order regardless of completion order
	pending := make(map[int]crawler.Result)
	next := 1
	for tr := range results {
		pending[tr.trial] = tr.result
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			r.commit(next, res)
			next++
		}
	}
	return <-waitErr
}

// reconcile cuts a walk short at the first path title that is cached now
// but was not when the walk read it. A walk started after every earlier
// commit would have stopped there with a cache hit. For a walk that saw the
// current cache this is a no-op.
func reconcile(res crawler.Result, cache *memory.DistanceCache) crawler.Result {
	for i, title := range res.Path {
		if res.Outcome == crawler.OutcomeReached && i == len(res.Path)-1 {
			break
		}
		cached, ok := cache.Lookup(title)
		if !ok {
			continue
		}
		distance := -1
		if cached >= 0 {
			distance = i + cached
		}
		return crawler.Result{
			Start:    res.Start,
			Path:     res.Path[:i],
			Distance: distance,
			Outcome:  crawler.OutcomeCacheHit,
		}
	}
	return res
}

// commit records one trial: its starting page, and a distance for every
// title on its path
func (r *Runner) commit(trial int, res crawler.Result) {
	res = reconcile(res, r.cache)
	rec := storage.StartRecord{
		Trial:   trial,
		Page:    res.Start,
		Count:   res.Distance,
		Outcome: res.Outcome.String(),
	}
	r.starts = append(r.starts, rec)

	// An errored walk says nothing about where its pages lead
	if res.Outcome != crawler.OutcomeErrored {
		r.cache.CommitPath(res.Path, res.Distance)
	}

	if r.store != nil {
		if err := r.store.InsertStartingPage(r.runID, rec); err != nil {
			logrus.Warnf("Failed to store trial %d: %v", trial, err)
		}
	}

	logrus.Infof("Trial %d/%d: %s (%s, distance %d, %d pages)",
		trial, r.opts.Trials, rec.Page, rec.Outcome, rec.Count, len(res.Path))

	if r.onTrial != nil {
		r.onTrial(trial, res)
	}
}

func (r *Runner) finish() (*Report, error) {
	report := &Report{
		RunID:   r.runID,
		Starts:  r.starts,
		Pages:   r.cache.Entries(),
		Summary: stats.Summarize(r.starts, r.opts.TopK),
	}

	logrus.Info("Search done!")

	if r.store == nil {
		return report, nil
	}
	if err := r.cache.Flush(r.store, r.runID); err != nil {
		return report, err
	}
	if err := r.store.FinishRun(r.runID, len(r.starts), report.Summary.Reached); err != nil {
		return report, err
	}
	return report, nil
}

// Export writes the starting pages, the cache and the distances of the
// trials that reached the target as CSV files under dir
func Export(dir string, report *Report) error {
	if err := storage.ExportStartingPages(dir, report.Starts); err != nil {
		return fmt.Errorf("failed to export starting pages: %w", err)
	}
	if err := storage.ExportPages(dir, report.Pages); err != nil {
		return fmt.Errorf("failed to export pages: %w", err)
	}
	if err := storage.ExportDistances(dir, stats.Distances(report.Starts)); err != nil {
		return fmt.Errorf("failed to export distances: %w", err)
	}
	return nil
}

// LoadReport rebuilds the report of a stored run. Pages is the cache as
// stored now, which later runs may have extended.
func LoadReport(store *storage.Storage, runID string, topK int) (*Report, error) {
	run, err := store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	starts, err := store.LoadStartingPages(runID)
	if err != nil {
		return nil, err
	}
	pages, err := store.LoadPages()
	if err != nil {
		return nil, err
	}

	if run.FinishedAt == nil {
		logrus.Warnf("Run %s did not finish, %d trials stored", runID, len(starts))
	}

	return &Report{
		RunID:   run.RunID,
		Starts:  starts,
		Pages:   pages,
		Summary: stats.Summarize(starts, topK),
	}, nil
}
