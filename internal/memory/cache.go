package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/alvmarrod/wiki-walker/internal/storage"
	"github.com/sirupsen/logrus"
)

// DistanceCache maps article titles to their distance to the target.
// It lives for the whole run and is shared by every trial.
type DistanceCache struct {
	distances map[string]int
	order     []string // insertion order, for stable exports
	mu        sync.RWMutex
}

// NewDistanceCache creates an empty cache
func NewDistanceCache() *DistanceCache {
	return &DistanceCache{
		distances: make(map[string]int),
	}
}

// Lookup returns the cached distance for a title
func (dc *DistanceCache) Lookup(title string) (int, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	d, ok := dc.distances[title]
	return d, ok
}

// Upsert sets the distance for a title, overwriting any previous value
func (dc *DistanceCache) Upsert(title string, distance int) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.upsertLocked(title, distance)
}

func (dc *DistanceCache) upsertLocked(title string, distance int) {
	if _, exists := dc.distances[title]; !exists {
		dc.order = append(dc.order, title)
	}
	dc.distances[title] = distance
}

// CommitPath records a finished walk. The i-th title of a path that reached
// the target at distance d gets d-i; every title of a failed walk gets -1.
func (dc *DistanceCache) CommitPath(path []string, distance int) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for i, title := range path {
		d := -1
		if distance >= 0 {
			d = distance - i
		}
		dc.upsertLocked(title, d)
	}
}

// Len returns the number of cached titles
func (dc *DistanceCache) Len() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return len(dc.distances)
}

// Entries returns a snapshot of the cache in insertion order
func (dc *DistanceCache) Entries() []storage.CacheEntry {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	entries := make([]storage.CacheEntry, 0, len(dc.order))
	for _, title := range dc.order {
		entries = append(entries, storage.CacheEntry{Page: title, Count: dc.distances[title]})
	}
	return entries
}

// Flush writes all cached distances to SQLite storage
func (dc *DistanceCache) Flush(store *storage.Storage, runID string) error {
	startTime := time.Now()
	logrus.Info("Starting flush to database...")

	entries := dc.Entries()
	if err := store.UpsertPages(runID, entries); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}

	logrus.Infof("Flush complete: %d pages written in %v", len(entries), time.Since(startTime))
	return nil
}

// LoadFromStorage seeds the cache with distances saved by earlier runs
func (dc *DistanceCache) LoadFromStorage(store *storage.Storage) error {
	logrus.Info("Loading cached pages from database into memory...")

	entries, err := store.LoadPages()
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()
	for _, e := range entries {
		dc.upsertLocked(e.Page, e.Count)
	}

	logrus.Infof("Loaded %d pages into memory", len(entries))
	return nil
}
