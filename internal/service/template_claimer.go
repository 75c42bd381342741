package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/dafibh/fortuna/fortuna-engine/internal/util"
	"github.com/rs/zerolog"
)

// ClaimResult is the outcome of one ClaimDue pass
type ClaimResult struct {
	Claimed     []domain.ClaimedTemplate
	Deactivated int
	Skipped     int
	Errors      []domain.TemplateError
}

// TemplateClaimer selects due templates and takes ownership of each due occurrence
// with a conditional write. At most one caller wins a given occurrence.
type TemplateClaimer struct {
	templateRepo domain.RecurringTemplateRepository
	defaultLoc   *time.Location
	logger       zerolog.Logger
}

// NewTemplateClaimer creates a new TemplateClaimer. defaultLoc is used for templates
// whose owner has no valid time zone.
func NewTemplateClaimer(templateRepo domain.RecurringTemplateRepository, defaultLoc *time.Location, logger zerolog.Logger) *TemplateClaimer {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &TemplateClaimer{
		templateRepo: templateRepo,
		defaultLoc:   defaultLoc,
		logger:       logger.With().Str("component", "template_claimer").Logger(),
	}
}

// ClaimDue claims every active template with next_run_at <= now. Losing a claim to
// a concurrent run is counted as skipped. Only a failure to list templates is returned
// as an error; per-template failures are collected in the result.
func (c *TemplateClaimer) ClaimDue(ctx context.Context, now time.Time) (*ClaimResult, error) {
	templates, err := c.templateRepo.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due templates: %w", err)
	}

	result := &ClaimResult{}
	for i, t := range templates {
		if ctx.Err() != nil {
			// Remaining templates stay due for the next invocation
			c.logger.Warn().Err(ctx.Err()).Int("remaining", len(templates)-i).Msg("Claiming interrupted")
			break
		}
		c.claimOne(ctx, t, now, result)
	}

	c.logger.Debug().
		Int("due", len(templates)).
		Int("claimed", len(result.Claimed)).
		Int("deactivated", result.Deactivated).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("Claimed due templates")

	return result, nil
}

func (c *TemplateClaimer) claimOne(ctx context.Context, t *domain.RecurringTemplate, now time.Time, result *ClaimResult) {
	if !t.Frequency.IsValid() {
		c.logger.Error().Int64("template_id", t.ID).Str("frequency", string(t.Frequency)).Msg("Template has unknown frequency")
		result.Errors = append(result.Errors, domain.TemplateError{
			TemplateID: t.ID,
			Reason:     fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, t.Frequency).Error(),
		})
		return
	}

	dueAt := t.NextRunAt

	if t.EndsBefore(dueAt) {
		won, err := c.templateRepo.Deactivate(ctx, t.ID, dueAt)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, domain.TemplateError{TemplateID: t.ID, Reason: err.Error()})
		case won:
			c.logger.Info().Int64("template_id", t.ID).Time("end_date", *t.EndDate).Msg("Deactivated template past its end date")
			result.Deactivated++
		default:
			result.Skipped++
		}
		return
	}

	loc := c.location(t)
	nextRun := util.AdvancePast(t.Frequency, t.Anchor(), dueAt, now, loc)
	active := !t.EndsBefore(nextRun)

	won, err := c.templateRepo.Claim(ctx, domain.ClaimUpdate{
		TemplateID:        t.ID,
		ExpectedNextRunAt: dueAt,
		NextRunAt:         nextRun,
		LastRunAt:         now,
		Active:            active,
	})
	if err != nil {
		c.logger.Error().Err(err).Int64("template_id", t.ID).Msg("Failed to claim template")
		result.Errors = append(result.Errors, domain.TemplateError{TemplateID: t.ID, Reason: err.Error()})
		return
	}
	if !won {
		c.logger.Debug().Int64("template_id", t.ID).Time("due_at", dueAt).Msg("Template already claimed by another run")
		result.Skipped++
		return
	}

	if !active {
		result.Deactivated++
	}

	claimed := *t
	claimed.NextRunAt = nextRun
	claimed.LastRunAt = &now
	claimed.Active = active
	result.Claimed = append(result.Claimed, domain.ClaimedTemplate{
		Template: &claimed,
		DueAt:    dueAt,
		NextRun:  nextRun,
	})
}

func (c *TemplateClaimer) location(t *domain.RecurringTemplate) *time.Location {
	loc, ok := util.LoadLocation(t.Timezone, c.defaultLoc)
	if !ok {
		c.logger.Warn().Int64("template_id", t.ID).Str("timezone", t.Timezone).Msg("Unknown time zone, using default")
	}
	return loc
}
