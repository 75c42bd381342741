package storage

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
)

// RunReportRepository archives the summary of a processing run
type RunReportRepository interface {
	// Save stores the summary and returns the object key it was written to
	Save(ctx context.Context, summary *domain.RunSummary) (string, error)
}

// ReportKey is the object key for a run summary: runs/YYYY/MM/DD/<runId>.json (UTC date)
func ReportKey(summary *domain.RunSummary) string {
	return fmt.Sprintf("runs/%s/%s.json", summary.StartedAt.UTC().Format("2006/01/02"), summary.RunID)
}

// NoOpRunReportRepository is used when object storage is not configured
type NoOpRunReportRepository struct{}

// Save does nothing
func (NoOpRunReportRepository) Save(ctx context.Context, summary *domain.RunSummary) (string, error) {
	return "", nil
}
