package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Export file names inside the output directory
const (
	StartingPagesFile = "starting_pages.csv"
	AllPagesFile      = "all_pages.csv"
	DistancesFile     = "dist_end_in_philo.csv"
)

// Persist writes a table as CSV to dir/name, creating dir if needed
func Persist(dir, name string, header []string, rows [][]string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return file.Close()
}

// ExportStartingPages writes one row per trial
func ExportStartingPages(dir string, records []StartRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{strconv.Itoa(r.Trial), r.Page, strconv.Itoa(r.Count), r.Outcome})
	}
	return Persist(dir, StartingPagesFile, []string{"trial", "page", "count", "outcome"}, rows)
}

// ExportPages writes the distance cache
func ExportPages(dir string, entries []CacheEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Page, strconv.Itoa(e.Count)})
	}
	return Persist(dir, AllPagesFile, []string{"page", "count"}, rows)
}

// ExportDistances writes the distances of the trials that reached the target
func ExportDistances(dir string, distances []int) error {
	rows := make([][]string, 0, len(distances))
	for _, d := range distances {
		rows = append(rows, []string{strconv.Itoa(d)})
	}
	return Persist(dir, DistancesFile, []string{"count"}, rows)
}
