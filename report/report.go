// Package report summarizes result logs.
package report

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/navbench/episode"
)

// ErrNoRecords is returned when summarizing an empty result log.
var ErrNoRecords = errors.New("no records to summarize")

// Summary aggregates a set of episodes. Metric statistics cover every episode, so failures
// count as zero. Time statistics only cover successful episodes.
type Summary struct {
	Episodes  int
	Succeeded int
	Collided  int
	TimedOut  int
	Crashed   int

	SuccessRate  float64
	MeanMetric   float64
	MedianMetric float64
	StdDevMetric float64

	MeanSuccessTime   float64
	MedianSuccessTime float64
}

// Summarize aggregates records.
func Summarize(records []episode.Record) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, ErrNoRecords
	}
	s := Summary{Episodes: len(records)}
	metrics := make(stats.Float64Data, 0, len(records))
	var successTimes stats.Float64Data
	for _, rec := range records {
		metrics = append(metrics, rec.Metric)
		switch {
		case rec.Success:
			s.Succeeded++
			successTimes = append(successTimes, rec.Elapsed)
		case rec.Collided:
			s.Collided++
		case rec.Timeout:
			s.TimedOut++
		}
		if rec.Crashed {
			s.Crashed++
		}
	}
	s.SuccessRate = float64(s.Succeeded) / float64(s.Episodes)

	var err error
	if s.MeanMetric, err = metrics.Mean(); err != nil {
		return Summary{}, err
	}
	if s.MedianMetric, err = metrics.Median(); err != nil {
		return Summary{}, err
	}
	if s.StdDevMetric, err = metrics.StandardDeviation(); err != nil {
		return Summary{}, err
	}
	if len(successTimes) > 0 {
		if s.MeanSuccessTime, err = successTimes.Mean(); err != nil {
			return Summary{}, err
		}
		if s.MedianSuccessTime, err = successTimes.Median(); err != nil {
			return Summary{}, err
		}
	}
	return s, nil
}

// String renders the summary as a two column table.
func (s Summary) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Statistic", "Value"})
	t.AppendRows([]table.Row{
		{"Episodes", s.Episodes},
		{"Succeeded", s.Succeeded},
		{"Collided", s.Collided},
		{"Timed out", s.TimedOut},
		{"Crashed", s.Crashed},
		{"Success rate", fmt.Sprintf("%.2f%%", 100*s.SuccessRate)},
		{"Metric mean", fmt.Sprintf("%.4f", s.MeanMetric)},
		{"Metric median", fmt.Sprintf("%.4f", s.MedianMetric)},
		{"Metric std dev", fmt.Sprintf("%.4f", s.StdDevMetric)},
		{"Success time mean (s)", fmt.Sprintf("%.2f", s.MeanSuccessTime)},
		{"Success time median (s)", fmt.Sprintf("%.2f", s.MedianSuccessTime)},
	})
	return t.Render()
}

// IndexSummary is the summary of all episodes sharing a record index.
type IndexSummary struct {
	Index int
	Summary
}

// SummarizeByIndex aggregates records per world index, or per speed for speed sweeps, in
// ascending index order.
func SummarizeByIndex(records []episode.Record) ([]IndexSummary, error) {
	byIndex := map[int][]episode.Record{}
	for _, rec := range records {
		byIndex[rec.Index] = append(byIndex[rec.Index], rec)
	}
	indices := lo.Keys(byIndex)
	sort.Ints(indices)

	summaries := make([]IndexSummary, 0, len(indices))
	for _, idx := range indices {
		s, err := Summarize(byIndex[idx])
		if err != nil {
			return nil, errors.Wrapf(err, "index %d", idx)
		}
		summaries = append(summaries, IndexSummary{Index: idx, Summary: s})
	}
	return summaries, nil
}

// IndexTable renders per index summaries with one row per index.
func IndexTable(summaries []IndexSummary) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Index", "Episodes", "Success rate", "Collided", "Timed out", "Metric mean"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.Index,
			s.Episodes,
			fmt.Sprintf("%.2f%%", 100*s.SuccessRate),
			s.Collided,
			s.TimedOut,
			fmt.Sprintf("%.4f", s.MeanMetric),
		})
	}
	return t.Render()
}

// RecordsTable renders one row per record.
func RecordsTable(records []episode.Record) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Index", "Outcome", "Crashed", "Elapsed (s)", "Metric"})
	for i, rec := range records {
		t.AppendRow(table.Row{i + 1, rec.Index, Outcome(rec).String(), rec.Crashed, fmt.Sprintf("%.4f", rec.Elapsed), fmt.Sprintf("%.4f", rec.Metric)})
	}
	return t.Render()
}

// Outcome recovers the terminal state of a record. A record with no flag set maps to
// episode.StateInProgress.
func Outcome(rec episode.Record) episode.State {
	switch {
	case rec.Collided:
		return episode.StateCollided
	case rec.Timeout:
		return episode.StateTimedOut
	case rec.Success:
		return episode.StateSucceeded
	default:
		return episode.StateInProgress
	}
}
