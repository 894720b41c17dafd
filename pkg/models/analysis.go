package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisStatus is the outcome of analyzing a single query.
type AnalysisStatus string

const (
	AnalysisStatusSuggested    AnalysisStatus = "suggested"
	AnalysisStatusNoSuggestion AnalysisStatus = "no_suggestion"
	AnalysisStatusSkipped      AnalysisStatus = "skipped" // no EXPLAIN output for the query
	AnalysisStatusFailed       AnalysisStatus = "failed"
)

// QueryAnalysis is the result for one query of a batch.
type QueryAnalysis struct {
	Query       string            `json:"query"`
	Status      AnalysisStatus    `json:"status"`
	Optimizable bool              `json:"optimizable"`
	Suggestions []*IndexCandidate `json:"suggestions,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// AnalysisReport is the result of one batch analysis.
type AnalysisReport struct {
	ID          uuid.UUID       `json:"id"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Queries     []QueryAnalysis `json:"queries"`
}

// Suggestions maps each query with at least one suggestion to its suggestions.
func (r *AnalysisReport) Suggestions() map[string][]*IndexCandidate {
	out := make(map[string][]*IndexCandidate)
	for _, qa := range r.Queries {
		if len(qa.Suggestions) == 0 {
			continue
		}
		out[qa.Query] = append(out[qa.Query], qa.Suggestions...)
	}
	return out
}
