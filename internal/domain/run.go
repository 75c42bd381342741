package domain

import (
	"time"

	"github.com/google/uuid"
)

// TemplateError is one per-template failure reported back to the trigger caller
type TemplateError struct {
	TemplateID int64  `json:"templateId"`
	Reason     string `json:"reason"`
}

// RunSummary aggregates the outcome of one processDue invocation
type RunSummary struct {
	RunID                   uuid.UUID       `json:"runId"`
	ProcessedCount          int             `json:"processedCount"`
	CreatedTransactionCount int             `json:"createdTransactionCount"`
	CreatedAlertCount       int             `json:"createdAlertCount"`
	DeactivatedCount        int             `json:"deactivatedCount"`
	SkippedCount            int             `json:"skippedCount"`
	Errors                  []TemplateError `json:"errors"`
	StartedAt               time.Time       `json:"startedAt"`
	DurationMs              int64           `json:"durationMs"`
}

// NewRunSummary creates an empty summary for a run starting at startedAt
func NewRunSummary(startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     uuid.New(),
		Errors:    []TemplateError{},
		StartedAt: startedAt,
	}
}

// AddError records a per-template failure
func (s *RunSummary) AddError(templateID int64, reason string) {
	s.Errors = append(s.Errors, TemplateError{TemplateID: templateID, Reason: reason})
}
