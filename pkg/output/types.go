// Package output provides formatting for ingestion summaries and query results.
package output

import (
	"time"

	"github.com/ccollicutt/matchlog/pkg/ingest"
	"github.com/ccollicutt/matchlog/pkg/repository"
)

// Report is one command result. Exactly one payload field is set.
type Report struct {
	Ingest     *IngestReport         `json:"ingest,omitempty"`
	Games      []repository.Game     `json:"games,omitempty"`
	Categories []repository.Category `json:"categories,omitempty"`
	Filters    *repository.Filters   `json:"filters,omitempty"`
	Players    []repository.Player   `json:"players,omitempty"`
	Setting    *Setting              `json:"setting,omitempty"`
}

// IngestReport summarizes an ingestion run.
type IngestReport struct {
	// Source is the log directory or pattern list that was ingested.
	Source string `json:"source"`

	Ingested        int   `json:"ingested"`
	Errors          int   `json:"errors"`
	Total           int   `json:"total"`
	Skipped         int   `json:"skipped"`
	Warnings        int   `json:"warnings"`
	PersistFailures int   `json:"persist_failures"`
	NamesBackfilled int64 `json:"names_backfilled"`

	// MainPlayer is set when the run designated the main player.
	MainPlayer string `json:"main_player,omitempty"`

	Failures []Failure `json:"failures,omitempty"`

	// IngestedAt is when the run completed.
	IngestedAt time.Time     `json:"ingested_at"`
	Duration   time.Duration `json:"duration"`
}

// Failure is a file that could not be ingested.
type Failure struct {
	File  string `json:"file"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Setting is a single key/value pair.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// NewIngestReport creates a Report from an ingestion summary.
func NewIngestReport(sum *ingest.Summary, source string) *Report {
	r := &IngestReport{
		Source:          source,
		Ingested:        sum.Ingested,
		Errors:          sum.Errors,
		Total:           sum.Total,
		Skipped:         sum.Skipped,
		Warnings:        sum.Warnings,
		PersistFailures: sum.PersistFailures,
		NamesBackfilled: sum.NamesBackfilled,
		MainPlayer:      sum.MainPlayer,
		IngestedAt:      sum.EndTime,
		Duration:        sum.EndTime.Sub(sum.StartTime),
	}
	for _, f := range sum.Failures {
		r.Failures = append(r.Failures, Failure{File: f.Name, Stage: string(f.Stage), Error: f.Err.Error()})
	}
	return &Report{Ingest: r}
}

// HasIssues returns true if an ingestion report recorded failed files.
func (r *Report) HasIssues() bool {
	return r.Ingest != nil && r.Ingest.Errors > 0
}
