// Package stats summarizes the distances of the trials that reached the target.
package stats

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	mstats "github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"

	"github.com/alvmarrod/wiki-walker/internal/storage"
)

// Frequency is how many trials ended at a given distance
type Frequency struct {
	Distance int
	Count    int
}

// Summary over the trials with a non-negative distance
type Summary struct {
	Trials  int
	Reached int
	Mean    float64
	Std     float64 // sample standard deviation, 0 below two values
	Min     int
	Max     int
	Top     []Frequency
}

// Distances returns the non-negative distances in trial order
func Distances(records []storage.StartRecord) []int {
	var out []int
	for _, r := range records {
		if r.Count >= 0 {
			out = append(out, r.Count)
		}
	}
	return out
}

// Summarize computes the summary over records, keeping the topK most
// frequent distances
func Summarize(records []storage.StartRecord, topK int) Summary {
	distances := Distances(records)
	s := Summary{
		Trials:  len(records),
		Reached: len(distances),
	}
	if len(distances) == 0 {
		return s
	}

	data := mstats.LoadRawData(distances)
	s.Mean, _ = mstats.Mean(data)
	if len(distances) > 1 {
		s.Std, _ = mstats.StandardDeviationSample(data)
	}
	minimum, _ := mstats.Min(data)
	maximum, _ := mstats.Max(data)
	s.Min = int(minimum)
	s.Max = int(maximum)
	s.Top = topFrequencies(distances, topK)

	return s
}

// topFrequencies orders by count descending, then distance ascending
func topFrequencies(distances []int, k int) []Frequency {
	counts := make(map[int]int)
	for _, d := range distances {
		counts[d]++
	}

	freq := make([]Frequency, 0, len(counts))
	for d, c := range counts {
		freq = append(freq, Frequency{Distance: d, Count: c})
	}
	sort.Slice(freq, func(i, j int) bool {
		if freq[i].Count != freq[j].Count {
			return freq[i].Count > freq[j].Count
		}
		return freq[i].Distance < freq[j].Distance
	})

	if len(freq) > k {
		freq = freq[:k]
	}
	return freq
}

// Render prints the summary as tables
func Render(w io.Writer, s Summary) {
	fmt.Fprintf(w, "%d/%d pages found the target.\n", s.Reached, s.Trials)
	if s.Reached == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Statistic", "Value"})
	table.Append([]string{"Path lengths mean", strconv.FormatFloat(s.Mean, 'f', 3, 64)})
	table.Append([]string{"Standard deviation", strconv.FormatFloat(s.Std, 'f', 3, 64)})
	table.Append([]string{"Maximum", strconv.Itoa(s.Max)})
	table.Append([]string{"Minimum", strconv.Itoa(s.Min)})
	table.Render()

	fmt.Fprintf(w, "Top %d path lengths:\n", len(s.Top))
	top := tablewriter.NewWriter(w)
	top.SetHeader([]string{"Length", "Count"})
	for _, f := range s.Top {
		top.Append([]string{strconv.Itoa(f.Distance), strconv.Itoa(f.Count)})
	}
	top.Render()
}
