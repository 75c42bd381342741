package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// DueProcessor runs one pass over due recurring templates
type DueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (*domain.RunSummary, error)
}

// RecurringProcessorHandler exposes the recurring run to the external trigger
type RecurringProcessorHandler struct {
	processor DueProcessor
	clock     func() time.Time
}

// NewRecurringProcessorHandler creates a new RecurringProcessorHandler
func NewRecurringProcessorHandler(processor DueProcessor) *RecurringProcessorHandler {
	return &RecurringProcessorHandler{
		processor: processor,
		clock:     time.Now,
	}
}

// ProcessDue handles POST /api/v1/internal/recurring/process
// An optional "at" query parameter (RFC 3339, not in the future) replaces the current
// time for manual runs.
func (h *RecurringProcessorHandler) ProcessDue(c echo.Context) error {
	now := h.clock()
	if raw := c.QueryParam("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return NewValidationError(c, "Invalid query parameter", []ValidationError{
				{Field: "at", Message: "Must be an RFC 3339 timestamp"},
			})
		}
		// Templates due after the real clock must not be claimed early
		if parsed.After(now) {
			return NewValidationError(c, "Invalid query parameter", []ValidationError{
				{Field: "at", Message: "Must not be in the future"},
			})
		}
		now = parsed
	}

	summary, err := h.processor.ProcessDue(c.Request().Context(), now)
	if err != nil {
		log.Error().Err(err).Time("now", now).Msg("Recurring run failed")
		return NewInternalError(c, "Failed to process recurring templates")
	}

	log.Info().
		Str("run_id", summary.RunID.String()).
		Int("processed", summary.ProcessedCount).
		Int("errors", len(summary.Errors)).
		Msg("Recurring run completed")

	return c.JSON(http.StatusOK, summary)
}
