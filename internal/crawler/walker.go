package crawler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome is the terminal state of one walk
type Outcome int

const (
	OutcomeReached  Outcome = iota // target article fetched
	OutcomeCacheHit                // stopped at a title resolved by an earlier trial
	OutcomeCycle                   // title repeated within the walk
	OutcomeNoLink                  // page has no qualifying link
	OutcomeHopLimit                // max hops exceeded
	OutcomeErrored                 // fetch or parse failure
)

var outcomeNames = map[Outcome]string{
	OutcomeReached:  "reached",
	OutcomeCacheHit: "cache_hit",
	OutcomeCycle:    "cycle",
	OutcomeNoLink:   "no_link",
	OutcomeHopLimit: "hop_limit",
	OutcomeErrored:  "errored",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Result of a single walk
type Result struct {
	// Title of the first page, "" when it could not be read
	Start string
	// Titles in visitation order, without repeats
	Path []string
	// Hops to the target, or -1
	Distance int
	Outcome  Outcome
	// Set when Outcome is OutcomeErrored
	Err error
}

// DistanceLookup is the read side of the cross-trial distance cache
type DistanceLookup interface {
	Lookup(title string) (int, bool)
}

// PageEvent describes one fetch performed during a walk
type PageEvent struct {
	Trial    int
	Hop      int
	URL      string
	Duration time.Duration
	Err      error
}

// Walker follows first links from a start page until the target is reached
// or the walk fails
type Walker struct {
	fetcher   Fetcher
	cache     DistanceLookup
	targetURL string
	maxHops   int
	onPage    func(PageEvent)
}

// NewWalker creates a walker. maxHops bounds the number of links followed.
func NewWalker(fetcher Fetcher, cache DistanceLookup, targetURL string, maxHops int) *Walker {
	return &Walker{
		fetcher:   fetcher,
		cache:     cache,
		targetURL: CanonicalURL(targetURL),
		maxHops:   maxHops,
	}
}

// OnPage registers a callback invoked after every fetch
func (w *Walker) OnPage(fn func(PageEvent)) {
	w.onPage = fn
}

// Walk runs one trial starting at startURL, normally the random article
// endpoint. The URL it redirects to becomes the first node.
func (w *Walker) Walk(ctx context.Context, trial int, startURL string) Result {
	log := logrus.WithField("trial", trial)

	var start string
	var path []string
	seen := make(map[string]bool)
	current := startURL

	done := func(outcome Outcome, distance int, err error) Result {
		return Result{Start: start, Path: path, Distance: distance, Outcome: outcome, Err: err}
	}
	errored := func(err error) Result {
		log.Errorf("Trial aborted: %v", err)
		return done(OutcomeErrored, -1, err)
	}

	for hops := 0; ; hops++ {
		if hops > w.maxHops {
			log.Warnf("Exceeded %d hops, ending search.", w.maxHops)
			return done(OutcomeHopLimit, -1, nil)
		}

		page, err := w.fetch(ctx, trial, hops, current)
		if err != nil {
			return errored(err)
		}
		if hops == 0 {
			current = page.URL
		}

		doc, err := ParseDocument(page.Body)
		if err != nil {
			return errored(err)
		}
		title, err := PageTitle(doc)
		if err != nil {
			return errored(err)
		}

		if hops == 0 {
			start = title
			log.Infof("--- Starting on: %s ---", title)
		} else {
			log.Info(title)
		}

		if w.isTarget(current) || w.isTarget(page.URL) {
			log.Infof("Target found in %d steps.", hops)
			path = append(path, title)
			return done(OutcomeReached, hops, nil)
		}

		if seen[title] {
			log.Info("Circular path, ending search.")
			return done(OutcomeCycle, -1, nil)
		}

		if cached, ok := w.cache.Lookup(title); ok {
			log.Info("Page already visited, ending search.")
			if cached < 0 {
				log.Info("Failed to find target.")
				return done(OutcomeCacheHit, -1, nil)
			}
			log.Infof("Target found in %d steps.", hops+cached)
			return done(OutcomeCacheHit, hops+cached, nil)
		}

		path = append(path, title)
		seen[title] = true

		next, ok := SelectLink(doc)
		if !ok {
			log.Info("No valid links found, ending search.")
			return done(OutcomeNoLink, -1, nil)
		}
		current = next
	}
}

func (w *Walker) fetch(ctx context.Context, trial, hop int, url string) (*Page, error) {
	var page *Page
	err := ctx.Err()
	if err == nil {
		page, err = w.fetcher.Fetch(ctx, url)
	}

	if w.onPage != nil {
		ev := PageEvent{Trial: trial, Hop: hop, URL: url, Err: err}
		if page != nil {
			ev.Duration = page.Duration
		}
		w.onPage(ev)
	}

	return page, err
}

func (w *Walker) isTarget(url string) bool {
	return CanonicalURL(url) == w.targetURL
}
