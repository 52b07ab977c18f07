package model

import (
	"sort"
	"time"
)

// RunSummary is the aggregate view of one pipeline run, used by the report
// writers and stored in the run ledger.
type RunSummary struct {
	// RunID identifies the run in the ledger.
	RunID string `json:"run_id"`

	// Workspace is the directory the run operated on.
	Workspace string `json:"workspace"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Total is the number of images seen.
	Total int `json:"total"`

	// Anonymized, Quarantined and Errored count images by log label.
	Anonymized  int `json:"anonymized"`
	Quarantined int `json:"quarantined"`
	Errored     int `json:"errored"`

	// Redacted counts secondary captures whose regions were cleared.
	Redacted int `json:"redacted"`

	// Reasons counts quarantined images by reason.
	Reasons map[string]int `json:"reasons,omitempty"`

	// Modalities counts images by modality.
	Modalities map[string]int `json:"modalities,omitempty"`

	// ShiftedDates is the number of distinct dates in the shift legend.
	ShiftedDates int `json:"shifted_dates"`

	// Cancelled is set when the run stopped before every image was handled.
	Cancelled bool `json:"cancelled"`
}

// NewRunSummary creates an empty summary.
func NewRunSummary(runID, workspace string) *RunSummary {
	return &RunSummary{
		RunID:      runID,
		Workspace:  workspace,
		StartedAt:  time.Now(),
		Reasons:    make(map[string]int),
		Modalities: make(map[string]int),
	}
}

// Add folds one record into the summary.
func (s *RunSummary) Add(r *Record) {
	s.Total++
	if r.Modality != "" {
		s.Modalities[r.Modality]++
	}
	if r.Redaction == Cleared {
		s.Redacted++
	}
	switch r.Label() {
	case LabelError:
		s.Errored++
	case LabelQuarantined:
		s.Quarantined++
		s.Reasons[r.Outcome.Reason]++
	default:
		s.Anonymized++
	}
}

// Count is a name with its number of occurrences.
type Count struct {
	Name  string
	Count int
}

// SortedReasons returns the quarantine reasons by descending count.
func (s *RunSummary) SortedReasons() []Count {
	return sortCounts(s.Reasons)
}

// SortedModalities returns the modalities by descending count.
func (s *RunSummary) SortedModalities() []Count {
	return sortCounts(s.Modalities)
}

func sortCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Duration returns how long the run took.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
